package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.UserAgent != defaultUserAgent {
			t.Errorf("Expected UserAgent to be %s, got %s", defaultUserAgent, cfg.UserAgent)
		}
		if cfg.CurseForgeAPIURL != defaultCurseForgeAPIURL {
			t.Errorf("Expected CurseForgeAPIURL default, got %s", cfg.CurseForgeAPIURL)
		}
		if cfg.ReleasesRepo != defaultReleasesRepo {
			t.Errorf("Expected ReleasesRepo default, got %s", cfg.ReleasesRepo)
		}
		if cfg.CurrentVersion != AppVersion {
			t.Errorf("Expected CurrentVersion to be %s, got %s", AppVersion, cfg.CurrentVersion)
		}
		if cfg.ValidationTimeout != 60 {
			t.Errorf("Expected ValidationTimeout 60, got %d", cfg.ValidationTimeout)
		}
	})

	t.Run("respects existing values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{
			UserAgent:         "custom-agent",
			ReleasesRepo:      "someone/fork",
			CurrentVersion:    "2.0.0-beta.1",
			ValidationTimeout: 5,
		}
		processConfigDefaults(&cfg)

		if cfg.UserAgent != "custom-agent" {
			t.Errorf("Expected UserAgent to stay custom-agent, got %s", cfg.UserAgent)
		}
		if cfg.ReleasesRepo != "someone/fork" {
			t.Errorf("Expected ReleasesRepo to stay someone/fork, got %s", cfg.ReleasesRepo)
		}
		if cfg.CurrentVersion != "2.0.0-beta.1" {
			t.Errorf("Expected CurrentVersion to stay, got %s", cfg.CurrentVersion)
		}
		if cfg.ValidationTimeout != 5 {
			t.Errorf("Expected ValidationTimeout to stay 5, got %d", cfg.ValidationTimeout)
		}
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing data dir", func(t *testing.T) {
		cfg := Config{DataDir: ""}
		err := validateAndEnsureDirectories(&cfg)
		if err == nil {
			t.Error("Expected error for missing DataDir")
		}
	})

	t.Run("creates directories", func(t *testing.T) {
		dataDir := filepath.Join(tmpDir, "launcher")
		cfg := Config{DataDir: dataDir}
		err := validateAndEnsureDirectories(&cfg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		for _, sub := range []string{"instances", "cache"} {
			path := filepath.Join(dataDir, sub)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Errorf("Directory %s was not created", sub)
			}
		}
		if cfg.DatabasePath != filepath.Join(dataDir, "launcher.db") {
			t.Errorf("Unexpected DatabasePath %s", cfg.DatabasePath)
		}
	})
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	env := "LAUNCHER_DATA_DIR=" + dataDir + "\nEXPERIMENTAL_UPDATES=true\nCURSEFORGE_API_KEY=secret\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %s, want %s", cfg.DataDir, dataDir)
	}
	if !cfg.ExperimentalUpdates {
		t.Error("ExperimentalUpdates = false, want true")
	}
	if cfg.CurseForgeAPIKey != "secret" {
		t.Errorf("CurseForgeAPIKey = %q", cfg.CurseForgeAPIKey)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"true", true},
		{"1", true},
		{"false", false},
		{"not-a-bool", false},
	}
	for _, tt := range tests {
		if got := parseBool("KEY", tt.raw); got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
