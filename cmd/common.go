package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"luminakraft-launcher/catalog"
	"luminakraft-launcher/config"
	"luminakraft-launcher/curseforge"
	"luminakraft-launcher/db"
	"luminakraft-launcher/gameruntime"
	"luminakraft-launcher/launcher"
	"luminakraft-launcher/logger"
	"luminakraft-launcher/manifest"
	"luminakraft-launcher/model"
	"luminakraft-launcher/store"
	"luminakraft-launcher/updater"

	"go.uber.org/zap"
)

// app holds the wired services shared by all commands.
type app struct {
	cfg        config.Config
	catalog    *catalog.Catalog
	kv         *store.Badger
	instances  *db.InstanceStore
	validator  *manifest.Validator
	runtime    *gameruntime.Runtime
	controller *launcher.Controller
	prefs      updater.StorePreferences
	resolver   *updater.Resolver
	installer  *updater.Installer
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(path string) *app {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
	}

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatalw("Failed to open database", zap.Error(err))
	}
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	kv, err := store.Open(filepath.Join(cfg.CachePath, "kv"))
	if err != nil {
		logger.Log.Fatalw("Failed to open key/value store", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cat, err := catalog.Load(ctx, cfg.CatalogSource)
	if err != nil {
		logger.Log.Fatalw("Failed to load modpack catalog", zap.Error(err))
	}

	if cfg.CurseForgeAPIKey == "" {
		logger.Log.Warn("CURSEFORGE_API_KEY is not set; mod metadata requests may be rejected.")
	}
	client, err := curseforge.NewClient(cfg)
	if err != nil {
		logger.Log.Fatalw("Failed to create CurseForge client", zap.Error(err))
	}

	validator := manifest.NewValidator(client, logger.Log, time.Duration(cfg.ValidationTimeout)*time.Second)
	runtime := gameruntime.New(cfg, client, logger.Log)
	instances := db.NewInstanceStore(gdb)

	controller := launcher.New(launcher.Options{
		Catalog:   cat,
		Runtime:   runtime,
		Instances: instances,
		Validator: validator,
		Launch:    model.LaunchSettings{MemoryMB: cfg.MemoryMB},
		Log:       logger.Log,
	})

	native, err := updater.NewNativeUpdater(cfg.UpdateManifestURL, cfg.UpdatePublicKey, cfg.CurrentVersion, cfg.UserAgent)
	if err != nil {
		logger.Log.Fatalw("Failed to configure native updater", zap.Error(err))
	}
	prefs := updater.StorePreferences{Store: kv, Default: cfg.ExperimentalUpdates}
	resolver := updater.NewResolver(updater.ResolverOptions{
		Preferences:    prefs,
		Native:         native,
		Registry:       updater.NewRegistryClient(cfg.ReleasesRepo, cfg.UserAgent, nil),
		Cache:          kv,
		CurrentVersion: cfg.CurrentVersion,
		Log:            logger.Log,
	})

	return &app{
		cfg:        cfg,
		catalog:    cat,
		kv:         kv,
		instances:  instances,
		validator:  validator,
		runtime:    runtime,
		controller: controller,
		prefs:      prefs,
		resolver:   resolver,
		installer:  updater.NewInstaller(native, logger.Log, nil),
	}
}

func (a *app) close() {
	a.resolver.Stop()
	if err := a.kv.Close(); err != nil {
		logger.Log.Warnw("Failed to close key/value store", zap.Error(err))
	}
}

// describeError turns a typed error into the message shown to the user.
// Each kind gets its own wording since each calls for a different action.
func describeError(err error) string {
	var page *updater.DownloadPageRequired
	if errors.As(err, &page) {
		return fmt.Sprintf("Version %s has no signed build. Download it from %s", page.Version, page.URL)
	}

	detail := model.DetailOf(err)
	switch model.KindOf(err) {
	case model.KindArchiveNotAvailable:
		return "This entry is a server without a downloadable modpack (" + detail + "). Connect to it directly from the game."
	case model.KindAlreadyInProgress:
		return "Another operation is already running for this modpack. Wait for it to finish."
	case model.KindBusyStateConflict:
		return "That action is not available right now: " + detail
	case model.KindInvalidArchive:
		return "The modpack archive is invalid: " + detail
	case model.KindValidationTimeout:
		return "Checking the modpack archive took too long. Try again."
	case model.KindMetadataFetchPartialFailure:
		return "Some mod metadata could not be fetched: " + detail
	case model.KindMissingMods:
		return "Some mods cannot be downloaded automatically: " + detail
	case model.KindRuntimeOperationFailed:
		return "The operation failed: " + detail
	case model.KindUpdateCheckFailed:
		return "Could not check for launcher updates: " + detail
	case model.KindUpdateInstallFailed:
		return "The launcher update failed: " + detail
	case model.KindNotFound:
		return detail
	default:
		return err.Error()
	}
}
