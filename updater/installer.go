package updater

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"luminakraft-launcher/model"
	"luminakraft-launcher/progress"
)

// RestartManually is shown when an update was installed but the launcher
// could not restart itself.
const RestartManually = "the update was installed; restart the launcher manually to finish"

// NativeInstaller downloads, verifies and swaps in a signed build.
type NativeInstaller interface {
	DownloadAndInstall(ctx context.Context, a NativeArtifact, onProgress func(done, total int64)) error
	Relaunch() error
}

// Installer applies a resolved update. Only one install may run per process.
type Installer struct {
	native   NativeInstaller
	log      *zap.SugaredLogger
	now      func() time.Time
	inFlight atomic.Bool
}

// NewInstaller creates an installer. A nil clock defaults to time.Now.
func NewInstaller(native NativeInstaller, log *zap.SugaredLogger, clock func() time.Time) *Installer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Installer{native: native, log: log, now: clock}
}

// Install applies u. A RegistryRelease is never installed; it yields
// *DownloadPageRequired pointing at the release page instead.
func (i *Installer) Install(ctx context.Context, u ResolvedUpdate, onProgress func(progress.Snapshot)) error {
	if !i.inFlight.CompareAndSwap(false, true) {
		return model.NewError(model.KindAlreadyInProgress, nil, "an update is already being installed")
	}

	switch u := u.(type) {
	case NativeArtifact:
		return i.installNative(ctx, u, onProgress)
	case RegistryRelease:
		i.inFlight.Store(false)
		return &DownloadPageRequired{Version: u.Version, URL: u.URL}
	default:
		i.inFlight.Store(false)
		return model.NewError(model.KindUpdateInstallFailed, nil, "unsupported update type %T", u)
	}
}

// installNative smooths the raw byte counts through a progress.Tracker and
// keeps the in-flight flag set on success since the process is
// about to be replaced.
func (i *Installer) installNative(ctx context.Context, a NativeArtifact, onProgress func(progress.Snapshot)) error {
	i.log.Infow("Installing update", "version", a.Version)
	tracker := progress.NewTracker(i.now)
	report := func(done, total int64) {
		snap := tracker.Add(done, total)
		if onProgress != nil {
			onProgress(snap)
		}
	}
	if err := i.native.DownloadAndInstall(ctx, a, report); err != nil {
		i.inFlight.Store(false)
		return model.NewError(model.KindUpdateInstallFailed, err, "version %s", a.Version)
	}
	if err := i.native.Relaunch(); err != nil {
		i.inFlight.Store(false)
		i.log.Errorw("Failed to relaunch after update", "error", err)
		return model.NewError(model.KindUpdateInstallFailed, err, RestartManually)
	}
	return nil
}

// InstallLatest runs a fresh check and installs the result when it is newer.
func (i *Installer) InstallLatest(ctx context.Context, r *Resolver, onProgress func(progress.Snapshot)) (*UpdateInfo, error) {
	info, err := r.CheckForUpdates(ctx)
	if err != nil {
		return nil, err
	}
	if !info.HasUpdate {
		return info, nil
	}
	if info.Resolved == nil {
		return info, model.NewError(model.KindUpdateInstallFailed, nil, "no installable artifact for %s", info.LatestVersion)
	}
	if err := i.Install(ctx, info.Resolved, onProgress); err != nil {
		return info, err
	}
	return info, nil
}
