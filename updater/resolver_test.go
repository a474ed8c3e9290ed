package updater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"luminakraft-launcher/model"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *mapStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type fakeNative struct {
	mu     sync.Mutex
	latest *NativeArtifact
	err    error
	calls  int
	cur    string
}

func (f *fakeNative) Latest(ctx context.Context) (*NativeArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.latest, nil
}

func (f *fakeNative) CheckStable(ctx context.Context) (*NativeArtifact, error) {
	a, err := f.Latest(ctx)
	if err != nil || a == nil || a.Version == f.cur {
		return nil, err
	}
	return a, nil
}

type fakeRegistry struct {
	releases []Release
	err      error
}

func (f fakeRegistry) ListReleases(ctx context.Context) ([]Release, error) {
	return f.releases, f.err
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestResolver(experimental bool, native *fakeNative, registry ReleaseSource, current string, clock *fakeClock) *Resolver {
	cache := newMapStore()
	opts := ResolverOptions{
		Preferences:    StorePreferences{Store: cache, Default: experimental},
		Registry:       registry,
		Cache:          cache,
		CurrentVersion: current,
		Clock:          clock.Now,
	}
	if native != nil {
		opts.Native = native
	}
	return NewResolver(opts)
}

func TestExperimentalChannelPicksNewestPrerelease(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	registry := fakeRegistry{releases: []Release{
		{TagName: "v2.1.0-beta.3", Prerelease: true, HTMLURL: "https://github.com/x/y/releases/tag/v2.1.0-beta.3"},
		{TagName: "v2.0.0", HTMLURL: "https://github.com/x/y/releases/tag/v2.0.0"},
	}}
	r := newTestResolver(true, &fakeNative{err: errors.New("offline")}, registry, "2.1.0-beta.1", clock)

	info, err := r.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates() error = %v", err)
	}
	if !info.HasUpdate || info.LatestVersion != "2.1.0-beta.3" || !info.IsPrerelease {
		t.Errorf("info = %+v", info)
	}
	if info.Channel != ChannelExperimental {
		t.Errorf("channel = %s", info.Channel)
	}
	if _, ok := info.Resolved.(RegistryRelease); !ok {
		t.Errorf("resolved = %T, want RegistryRelease", info.Resolved)
	}
}

func TestExperimentalChannelNeverRegresses(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	registry := fakeRegistry{releases: []Release{{TagName: "v2.0.0-beta.9", Prerelease: true}}}
	r := newTestResolver(true, nil, registry, "2.0.0", clock)

	info, err := r.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates() error = %v", err)
	}
	if info.HasUpdate {
		t.Errorf("older prerelease reported as update: %+v", info)
	}
}

func TestExperimentalPrefersSignedArtifact(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	native := &fakeNative{latest: &NativeArtifact{Version: "2.1.0-beta.3", URL: "https://cdn/x", Signature: "c2ln"}}
	registry := fakeRegistry{releases: []Release{{TagName: "v2.1.0-beta.3", Prerelease: true}}}
	r := newTestResolver(true, native, registry, "2.1.0-beta.1", clock)

	info, err := r.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates() error = %v", err)
	}
	if _, ok := info.Resolved.(NativeArtifact); !ok {
		t.Errorf("resolved = %T, want NativeArtifact", info.Resolved)
	}
}

func TestStableChannel(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	native := &fakeNative{latest: &NativeArtifact{Version: "1.3.0", URL: "https://cdn/x"}, cur: "1.2.0"}
	r := newTestResolver(false, native, fakeRegistry{}, "1.2.0", clock)

	info, err := r.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatalf("CheckForUpdates() error = %v", err)
	}
	if !info.HasUpdate || info.LatestVersion != "1.3.0" || info.IsPrerelease || info.Channel != ChannelStable {
		t.Errorf("info = %+v", info)
	}

	native.cur = "1.3.0"
	r.current = "1.3.0"
	info, _ = r.CheckForUpdates(context.Background())
	if info.HasUpdate || info.Resolved != nil {
		t.Errorf("up to date info = %+v", info)
	}
}

func TestCheckFailureIsTyped(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	r := newTestResolver(true, nil, fakeRegistry{err: errors.New("HTTP 503")}, "1.0.0", clock)

	_, err := r.CheckForUpdates(context.Background())
	if !errors.Is(err, model.ErrUpdateCheckFailed) {
		t.Errorf("error = %v, want UpdateCheckFailed", err)
	}
	if r.CachedUpdateInfo() != nil {
		t.Error("failed check must not populate the cache")
	}
}

func TestCachedUpdateInfoTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	native := &fakeNative{latest: &NativeArtifact{Version: "1.3.0", URL: "https://cdn/x"}}
	r := newTestResolver(false, native, fakeRegistry{}, "1.2.0", clock)

	if r.CachedUpdateInfo() != nil {
		t.Fatal("cache should start empty")
	}
	if _, err := r.CheckForUpdates(context.Background()); err != nil {
		t.Fatal(err)
	}

	cached := r.CachedUpdateInfo()
	if cached == nil {
		t.Fatal("CachedUpdateInfo() = nil right after a check")
	}
	if a, ok := cached.Resolved.(NativeArtifact); !ok || a.Version != "1.3.0" {
		t.Errorf("cached resolved = %#v", cached.Resolved)
	}

	clock.t = clock.t.Add(CacheTTL - time.Second)
	if r.CachedUpdateInfo() == nil {
		t.Error("cache expired early")
	}
	clock.t = clock.t.Add(time.Second)
	if r.CachedUpdateInfo() != nil {
		t.Error("cache still returned at the TTL boundary")
	}
}

func TestPreferencesSwitchChannel(t *testing.T) {
	s := newMapStore()
	p := StorePreferences{Store: s}
	if ResolveChannel(p) != ChannelStable {
		t.Error("default should be stable")
	}
	if err := p.SetExperimentalUpdates(true); err != nil {
		t.Fatal(err)
	}
	if ResolveChannel(p) != ChannelExperimental {
		t.Error("opt-in not honoured")
	}
	s.Set(PrereleaseKey, []byte("garbage"))
	if ResolveChannel(p) != ChannelStable {
		t.Error("unreadable preference should fall back to stable")
	}
}

func TestBackgroundCheckerStartStop(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	native := &fakeNative{latest: &NativeArtifact{Version: "1.3.0"}}
	r := newTestResolver(false, native, fakeRegistry{}, "1.2.0", clock)

	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
	r.Stop()

	native.mu.Lock()
	calls := native.calls
	native.mu.Unlock()
	if calls != 1 {
		t.Errorf("native checked %d times, want 1", calls)
	}

	// With a fresh cache no immediate check is made.
	r.Start(context.Background())
	r.Stop()
	native.mu.Lock()
	calls = native.calls
	native.mu.Unlock()
	if calls != 1 {
		t.Errorf("native checked %d times after restart, want 1", calls)
	}
}

func nativeCalls(f *fakeNative) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBackgroundCheckerRestartsAfterParentCancel(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	native := &fakeNative{latest: &NativeArtifact{Version: "1.3.0"}}
	r := newTestResolver(false, native, fakeRegistry{}, "1.2.0", clock)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	waitFor(t, "the first check", func() bool { return nativeCalls(native) == 1 })

	cancel()
	waitFor(t, "the loop to exit", func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.cancel == nil && r.done == nil
	})

	clock.t = clock.t.Add(CacheTTL)
	r.Start(context.Background())
	waitFor(t, "a check after restart", func() bool { return nativeCalls(native) == 2 })
	r.Stop()
	r.Stop()
}
