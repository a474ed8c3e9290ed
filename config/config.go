package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"luminakraft-launcher/logger"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppVersion is the running launcher version, overridden at build time with
// -ldflags "-X luminakraft-launcher/config.AppVersion=...".
var AppVersion = "0.1.0"

const (
	defaultUserAgent         = "luminakraft-launcher/dev"
	defaultCurseForgeAPIURL  = "https://api.curseforge.com"
	defaultReleasesRepo      = "LuminaKraft/LuminaKraftLauncher"
	defaultValidationTimeout = 60
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	DataDir             string `mapstructure:"LAUNCHER_DATA_DIR"`
	CurseForgeAPIKey    string `mapstructure:"CURSEFORGE_API_KEY"`
	CurseForgeAPIURL    string `mapstructure:"CURSEFORGE_API_URL"`
	UserAgent           string `mapstructure:"USERAGENT"`
	CatalogSource       string `mapstructure:"CATALOG_SOURCE"`      // File path or http(s) URL
	ReleasesRepo        string `mapstructure:"RELEASES_REPO"`       // owner/repo on GitHub
	UpdateManifestURL   string `mapstructure:"UPDATE_MANIFEST_URL"` // Signed native updater manifest
	UpdatePublicKey     string `mapstructure:"UPDATE_PUBLIC_KEY"`   // base64 ed25519 key
	ExperimentalUpdates bool   `mapstructure:"EXPERIMENTAL_UPDATES"`
	LaunchCommand       string `mapstructure:"LAUNCH_COMMAND"`
	MemoryMB            int    `mapstructure:"MEMORY_MB"`
	CurrentVersion      string `mapstructure:"CURRENT_VERSION"`
	ValidationTimeout   int    `mapstructure:"VALIDATION_TIMEOUT_SECONDS"`
	DatabasePath        string `mapstructure:"-"` // Derived from DataDir
	CachePath           string `mapstructure:"-"` // Derived from DataDir
	InstancesDir        string `mapstructure:"-"` // Derived from DataDir
}

var envKeys = []string{
	"LAUNCHER_DATA_DIR",
	"CURSEFORGE_API_KEY",
	"CURSEFORGE_API_URL",
	"USERAGENT",
	"CATALOG_SOURCE",
	"RELEASES_REPO",
	"UPDATE_MANIFEST_URL",
	"UPDATE_PUBLIC_KEY",
	"EXPERIMENTAL_UPDATES",
	"LAUNCH_COMMAND",
	"MEMORY_MB",
	"CURRENT_VERSION",
	"VALIDATION_TIMEOUT_SECONDS",
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)   // Path to look for the config file in
	viper.SetConfigName(".env") // Name of config file (without extension)
	viper.SetConfigType("env")  // REQUIRED if the config file does not have the extension in the name

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		logger.Log.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			logger.Log.Warnw("Unable to bind env var", zap.String("key", key), zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	// Viper leaves bools from .env files as strings when the key was never set explicitly.
	config.ExperimentalUpdates = parseBool("EXPERIMENTAL_UPDATES", viper.GetString("EXPERIMENTAL_UPDATES"))

	processConfigDefaults(&config)

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// processConfigDefaults fills in defaults for optional settings.
func processConfigDefaults(config *Config) {
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
		logger.Log.Warn("USERAGENT not set in config or environment, using default.")
	}
	if config.CurseForgeAPIURL == "" {
		config.CurseForgeAPIURL = defaultCurseForgeAPIURL
	}
	if config.ReleasesRepo == "" {
		config.ReleasesRepo = defaultReleasesRepo
	}
	if config.CurrentVersion == "" {
		config.CurrentVersion = AppVersion
	}
	if config.ValidationTimeout <= 0 {
		config.ValidationTimeout = defaultValidationTimeout
	}
}

// validateAndEnsureDirectories checks the data directory and creates its layout.
func validateAndEnsureDirectories(config *Config) error {
	if config.DataDir == "" {
		logger.Log.Error("LAUNCHER_DATA_DIR is not set")
		return fmt.Errorf("LAUNCHER_DATA_DIR is required")
	}

	config.InstancesDir = filepath.Join(config.DataDir, "instances")
	config.CachePath = filepath.Join(config.DataDir, "cache")
	config.DatabasePath = filepath.Join(config.DataDir, "launcher.db")

	for _, dir := range []string{config.DataDir, config.InstancesDir, config.CachePath} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			logger.Log.Infow("Directory does not exist, creating it", zap.String("path", dir))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory '%s': %w", dir, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to check directory '%s': %w", dir, err)
		}
	}

	return nil
}

func parseBool(key, raw string) bool {
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Log.Warnw("Invalid boolean value, defaulting to false", zap.String("key", key), zap.String("value", raw), zap.Error(err))
		return false
	}
	return v
}
