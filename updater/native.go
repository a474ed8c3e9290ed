package updater

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/cavaliergopher/grab/v3"

	"luminakraft-launcher/version"
)

const (
	cleanupEnv   = "UPDATER_CLEANUP_OLD"
	progressTick = 100 * time.Millisecond
)

// ErrNoArtifact means the manifest has no build for this platform.
var ErrNoArtifact = errors.New("no update artifact for this platform")

// nativeManifest is the document served at UPDATE_MANIFEST_URL.
type nativeManifest struct {
	Version   string                      `json:"version"`
	Notes     string                      `json:"notes"`
	PubDate   time.Time                   `json:"pub_date"`
	Platforms map[string]platformArtifact `json:"platforms"`
}

type platformArtifact struct {
	URL       string `json:"url"`
	Signature string `json:"signature"`
}

// NativeUpdater installs signed launcher builds in place of the running
// executable.
type NativeUpdater struct {
	ManifestURL    string
	PublicKey      ed25519.PublicKey
	CurrentVersion string
	Platform       string
	HTTPClient     *http.Client

	grab       *grab.Client
	executable func() (string, error)
	start      func(*exec.Cmd) error
	exit       func(code int)
}

// NewNativeUpdater decodes the base64 ed25519 public key used to verify builds.
func NewNativeUpdater(manifestURL, publicKey, currentVersion, userAgent string) (*NativeUpdater, error) {
	var key ed25519.PublicKey
	if publicKey != "" {
		raw, err := base64.StdEncoding.DecodeString(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid UPDATE_PUBLIC_KEY: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid UPDATE_PUBLIC_KEY: got %d bytes, want %d", len(raw), ed25519.PublicKeySize)
		}
		key = ed25519.PublicKey(raw)
	}

	client := grab.NewClient()
	client.UserAgent = userAgent
	return &NativeUpdater{
		ManifestURL:    manifestURL,
		PublicKey:      key,
		CurrentVersion: currentVersion,
		Platform:       runtime.GOOS + "-" + runtime.GOARCH,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		grab:           client,
		executable:     os.Executable,
		start:          func(cmd *exec.Cmd) error { return cmd.Start() },
		exit:           os.Exit,
	}, nil
}

// Latest returns the artifact the manifest currently publishes.
func (n *NativeUpdater) Latest(ctx context.Context) (*NativeArtifact, error) {
	if n.ManifestURL == "" {
		return nil, fmt.Errorf("UPDATE_MANIFEST_URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.ManifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch update manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch update manifest: HTTP %d", resp.StatusCode)
	}

	var m nativeManifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse update manifest: %w", err)
	}
	p, ok := m.Platforms[n.Platform]
	if !ok || p.URL == "" {
		return nil, fmt.Errorf("%w (%s)", ErrNoArtifact, n.Platform)
	}
	return &NativeArtifact{
		Version:   m.Version,
		URL:       p.URL,
		Signature: p.Signature,
		Notes:     m.Notes,
		PubDate:   m.PubDate,
	}, nil
}

// CheckStable returns the published artifact when it is newer than the
// running version, nil otherwise. A manifest without a build for this
// platform is treated as no update.
func (n *NativeUpdater) CheckStable(ctx context.Context) (*NativeArtifact, error) {
	a, err := n.Latest(ctx)
	if errors.Is(err, ErrNoArtifact) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if version.Compare(a.Version, n.CurrentVersion) <= 0 {
		return nil, nil
	}
	return a, nil
}

// DownloadAndInstall downloads the artifact next to the executable, verifies
// its signature and swaps it in, keeping the previous binary as .old.
func (n *NativeUpdater) DownloadAndInstall(ctx context.Context, a NativeArtifact, onProgress func(done, total int64)) error {
	if len(n.PublicKey) == 0 {
		return fmt.Errorf("UPDATE_PUBLIC_KEY is not configured")
	}
	sig, err := base64.StdEncoding.DecodeString(a.Signature)
	if err != nil {
		return fmt.Errorf("invalid artifact signature: %w", err)
	}

	exePath, err := n.executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	newPath := exePath + ".new"
	defer os.Remove(newPath)

	if err := n.fetch(ctx, a.URL, newPath, onProgress); err != nil {
		return err
	}

	data, err := os.ReadFile(newPath)
	if err != nil {
		return err
	}
	if !ed25519.Verify(n.PublicKey, data, sig) {
		return fmt.Errorf("signature verification failed for %s", a.Version)
	}

	oldPath := exePath + ".old"
	_ = os.Remove(oldPath)
	if err := os.Rename(exePath, oldPath); err != nil {
		return fmt.Errorf("failed to back up executable: %w", err)
	}
	if err := os.Rename(newPath, exePath); err != nil {
		_ = os.Rename(oldPath, exePath)
		return fmt.Errorf("failed to replace executable: %w", err)
	}
	return os.Chmod(exePath, 0755)
}

func (n *NativeUpdater) fetch(ctx context.Context, url, target string, onProgress func(done, total int64)) error {
	req, err := grab.NewRequest(target, url)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	resp := n.grab.Do(req)

	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			if onProgress != nil {
				onProgress(resp.BytesComplete(), resp.Size())
			}
		case <-resp.Done:
			break loop
		}
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if onProgress != nil {
		onProgress(resp.BytesComplete(), resp.Size())
	}
	return nil
}

// Relaunch starts the freshly installed executable with the same arguments
// and exits the current process.
func (n *NativeUpdater) Relaunch() error {
	exePath, err := n.executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exePath, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), cleanupEnv+"=1")

	if err := n.start(cmd); err != nil {
		return err
	}

	// Give the new process a moment to initialize before we exit
	time.Sleep(100 * time.Millisecond)
	n.exit(0)
	return nil
}

// CleanupOld removes the .old backup left by a previous update.
func CleanupOld() {
	if os.Getenv(cleanupEnv) != "1" {
		return
	}
	exePath, err := os.Executable()
	if err != nil {
		return
	}
	_ = os.Remove(exePath + ".old")
}
