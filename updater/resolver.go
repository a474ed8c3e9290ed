package updater

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"luminakraft-launcher/model"
	"luminakraft-launcher/store"
	"luminakraft-launcher/version"
)

const (
	// CacheKey holds the last update check result.
	CacheKey = "update_info_cache"
	// CacheTTL is how long a cached check stays usable.
	CacheTTL = time.Hour
)

// StableSource is the native updater as seen by the resolver.
type StableSource interface {
	CheckStable(ctx context.Context) (*NativeArtifact, error)
	Latest(ctx context.Context) (*NativeArtifact, error)
}

// ReleaseSource lists releases newest first.
type ReleaseSource interface {
	ListReleases(ctx context.Context) ([]Release, error)
}

type ResolverOptions struct {
	Preferences    Preferences
	Native         StableSource
	Registry       ReleaseSource
	Cache          store.Store
	CurrentVersion string
	Log            *zap.SugaredLogger
	Clock          func() time.Time
}

// Resolver decides which release stream applies and whether an update exists.
type Resolver struct {
	prefs    Preferences
	native   StableSource
	registry ReleaseSource
	cache    store.Store
	current  string
	log      *zap.SugaredLogger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type cachedInfo struct {
	Info     UpdateInfo       `json:"info"`
	Native   *NativeArtifact  `json:"native,omitempty"`
	Registry *RegistryRelease `json:"registry,omitempty"`
}

func NewResolver(opts ResolverOptions) *Resolver {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Resolver{
		prefs:    opts.Preferences,
		native:   opts.Native,
		registry: opts.Registry,
		cache:    opts.Cache,
		current:  opts.CurrentVersion,
		log:      opts.Log,
		now:      opts.Clock,
	}
}

// Channel returns the channel the next check will use.
func (r *Resolver) Channel() Channel {
	return ResolveChannel(r.prefs)
}

// CheckForUpdates queries the source for the active channel and caches the
// result. Any failure is reported as UpdateCheckFailed.
func (r *Resolver) CheckForUpdates(ctx context.Context) (*UpdateInfo, error) {
	channel := r.Channel()

	var (
		info *UpdateInfo
		err  error
	)
	if channel == ChannelExperimental {
		info, err = r.checkExperimental(ctx)
	} else {
		info, err = r.checkStable(ctx)
	}
	if err != nil {
		return nil, model.NewError(model.KindUpdateCheckFailed, err, "%s channel", channel)
	}

	info.Channel = channel
	info.CurrentVersion = r.current
	info.CheckedAt = r.now()
	r.store(info)
	return info, nil
}

func (r *Resolver) checkStable(ctx context.Context) (*UpdateInfo, error) {
	a, err := r.native.CheckStable(ctx)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return &UpdateInfo{LatestVersion: r.current}, nil
	}
	return &UpdateInfo{
		HasUpdate:     version.Compare(a.Version, r.current) > 0,
		LatestVersion: a.Version,
		IsPrerelease:  version.Parse(a.Version).IsPrerelease(),
		ReleaseNotes:  a.Notes,
		DownloadURL:   a.URL,
		Resolved:      *a,
	}, nil
}

// checkExperimental takes the newest release regardless of its prerelease
// flag and only reports it when it is newer than the running version.
func (r *Resolver) checkExperimental(ctx context.Context) (*UpdateInfo, error) {
	releases, err := r.registry.ListReleases(ctx)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return &UpdateInfo{LatestVersion: r.current}, nil
	}

	newest := releases[0]
	latest := strings.TrimPrefix(strings.TrimPrefix(newest.TagName, "v"), "V")
	info := &UpdateInfo{
		HasUpdate:     version.Compare(latest, r.current) > 0,
		LatestVersion: latest,
		IsPrerelease:  newest.Prerelease || version.Parse(latest).IsPrerelease(),
		ReleaseNotes:  newest.Body,
		DownloadURL:   newest.HTMLURL,
		Resolved: RegistryRelease{
			Version:    latest,
			URL:        newest.HTMLURL,
			Prerelease: newest.Prerelease,
			Notes:      newest.Body,
		},
	}

	// Prefer the signed build when the native manifest publishes the same version.
	if r.native != nil {
		a, err := r.native.Latest(ctx)
		if err != nil {
			r.log.Debugw("Native manifest unavailable for experimental release", "error", err)
		} else if a != nil && version.Compare(a.Version, latest) == 0 {
			info.Resolved = *a
			info.DownloadURL = a.URL
		}
	}
	return info, nil
}

func (r *Resolver) store(info *UpdateInfo) {
	if r.cache == nil {
		return
	}
	entry := cachedInfo{Info: *info}
	switch u := info.Resolved.(type) {
	case NativeArtifact:
		entry.Native = &u
	case RegistryRelease:
		entry.Registry = &u
	}
	data, err := json.Marshal(entry)
	if err != nil {
		r.log.Warnw("Failed to encode update info", "error", err)
		return
	}
	if err := r.cache.Set(CacheKey, data); err != nil {
		r.log.Warnw("Failed to cache update info", "error", err)
	}
}

// CachedUpdateInfo returns the last check result, or nil when there is none
// or it is older than CacheTTL.
func (r *Resolver) CachedUpdateInfo() *UpdateInfo {
	if r.cache == nil {
		return nil
	}
	data, ok, err := r.cache.Get(CacheKey)
	if err != nil || !ok {
		return nil
	}
	var entry cachedInfo
	if err := json.Unmarshal(data, &entry); err != nil {
		r.log.Debugw("Discarding unreadable update cache", "error", err)
		return nil
	}
	if r.now().Sub(entry.Info.CheckedAt) >= CacheTTL {
		return nil
	}

	info := entry.Info
	switch {
	case entry.Native != nil:
		info.Resolved = *entry.Native
	case entry.Registry != nil:
		info.Resolved = *entry.Registry
	}
	return &info
}

// Start runs periodic background checks until Stop or ctx is done. Calling
// Start while already running does nothing.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

// Stop halts the background checker and waits for it to exit.
func (r *Resolver) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Resolver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer r.release(done)

	if r.CachedUpdateInfo() == nil {
		r.backgroundCheck(ctx)
	}

	ticker := time.NewTicker(CacheTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.backgroundCheck(ctx)
		}
	}
}

// release forgets the loop identified by done so Start can run a new one
// after the parent context ends. A loop already replaced or stopped is left alone.
func (r *Resolver) release(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != done {
		return
	}
	r.cancel()
	r.cancel, r.done = nil, nil
}

func (r *Resolver) backgroundCheck(ctx context.Context) {
	info, err := r.CheckForUpdates(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warnw("Background update check failed", "error", err)
		}
		return
	}
	if info.HasUpdate {
		r.log.Infow("Update available", "current", info.CurrentVersion, "latest", info.LatestVersion, "channel", info.Channel)
	}
}
