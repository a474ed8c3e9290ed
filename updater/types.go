package updater

import (
	"fmt"
	"strconv"
	"time"

	"luminakraft-launcher/store"
)

type Channel string

const (
	ChannelStable       Channel = "stable"
	ChannelExperimental Channel = "experimental"
)

// PrereleaseKey is the store key holding the experimental opt-in.
const PrereleaseKey = "prerelease_opt_in"

// Preferences supplies the user's update settings.
type Preferences interface {
	ExperimentalUpdates() (bool, error)
	SetExperimentalUpdates(enabled bool) error
}

// StorePreferences keeps preferences in the local key/value store, falling
// back to Default when nothing was saved.
type StorePreferences struct {
	Store   store.Store
	Default bool
}

func (p StorePreferences) ExperimentalUpdates() (bool, error) {
	v, ok, err := p.Store.Get(PrereleaseKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return p.Default, nil
	}
	return strconv.ParseBool(string(v))
}

func (p StorePreferences) SetExperimentalUpdates(enabled bool) error {
	return p.Store.Set(PrereleaseKey, []byte(strconv.FormatBool(enabled)))
}

// ResolveChannel maps the prerelease opt-in onto a channel. Unreadable
// preferences fall back to stable.
func ResolveChannel(p Preferences) Channel {
	enabled, err := p.ExperimentalUpdates()
	if err != nil || !enabled {
		return ChannelStable
	}
	return ChannelExperimental
}

// ResolvedUpdate is either a NativeArtifact or a RegistryRelease. Only a
// NativeArtifact carries an installable, signed payload.
type ResolvedUpdate interface {
	resolvedVersion() string
}

// NativeArtifact is a signed build published in the native update manifest.
type NativeArtifact struct {
	Version   string    `json:"version"`
	URL       string    `json:"url"`
	Signature string    `json:"signature"`
	Notes     string    `json:"notes,omitempty"`
	PubDate   time.Time `json:"pubDate,omitempty"`
}

func (a NativeArtifact) resolvedVersion() string { return a.Version }

// RegistryRelease is a GitHub release that can only be installed by hand.
type RegistryRelease struct {
	Version    string `json:"version"`
	URL        string `json:"url"`
	Prerelease bool   `json:"prerelease"`
	Notes      string `json:"notes,omitempty"`
}

func (r RegistryRelease) resolvedVersion() string { return r.Version }

// UpdateInfo is the result of an update check.
type UpdateInfo struct {
	HasUpdate      bool           `json:"hasUpdate"`
	CurrentVersion string         `json:"currentVersion"`
	LatestVersion  string         `json:"latestVersion"`
	IsPrerelease   bool           `json:"isPrerelease"`
	Channel        Channel        `json:"channel"`
	ReleaseNotes   string         `json:"releaseNotes,omitempty"`
	DownloadURL    string         `json:"downloadUrl,omitempty"`
	CheckedAt      time.Time      `json:"checkedAt"`
	Resolved       ResolvedUpdate `json:"-"`
}

// DownloadPageRequired is returned when an update has no signed artifact and
// must be downloaded manually from URL.
type DownloadPageRequired struct {
	Version string
	URL     string
}

func (e *DownloadPageRequired) Error() string {
	return fmt.Sprintf("version %s must be downloaded manually from %s", e.Version, e.URL)
}
