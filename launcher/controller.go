package launcher

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"luminakraft-launcher/db"
	"luminakraft-launcher/manifest"
	"luminakraft-launcher/model"
	"luminakraft-launcher/progress"
)

// sampleBuffer bounds the queue between the runtime and the progress drain.
const sampleBuffer = 64

// Catalog resolves modpack descriptors.
type Catalog interface {
	Get(id string) (model.ModpackDescriptor, error)
}

// Runtime performs the actual transfers, extraction and game launch.
// Implementations send progress samples on the provided channel and must not
// send after returning; they never close it.
type Runtime interface {
	FetchArchive(ctx context.Context, d model.ModpackDescriptor, samples chan<- model.Sample) (string, error)
	InstallArchive(ctx context.Context, d model.ModpackDescriptor, archivePath string, samples chan<- model.Sample) error
	Launch(ctx context.Context, d model.ModpackDescriptor, settings model.LaunchSettings) error
	DeleteInstance(id string) error
	// DiscardArchive drops the cached archive for d so the next fetch downloads it again.
	DiscardArchive(d model.ModpackDescriptor) error
}

// Instances persists which modpack versions are installed.
type Instances interface {
	Get(modpackID string) (db.Instance, bool, error)
	Save(modpackID, version string, installedAt time.Time) error
	Delete(modpackID string) error
}

// Validator checks a downloaded archive before it is installed.
type Validator interface {
	Validate(ctx context.Context, archivePath string) (*manifest.ValidationResult, error)
}

type Options struct {
	Catalog   Catalog
	Runtime   Runtime
	Instances Instances
	// Validator may be nil, in which case archives are installed unchecked.
	Validator Validator
	Launch    model.LaunchSettings
	Log       *zap.SugaredLogger
	Clock     func() time.Time
}

// Controller owns the per-modpack state machine. At most one action runs per
// modpack id; a second request is rejected rather than queued.
type Controller struct {
	catalog   Catalog
	runtime   Runtime
	instances Instances
	validator Validator
	launch    model.LaunchSettings
	log       *zap.SugaredLogger
	now       func() time.Time

	mu     sync.Mutex
	states map[string]*model.RuntimeState
	busy   map[string]*Operation
	subs   map[int]*subscriber
	nextID int
}

func New(opts Options) *Controller {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Controller{
		catalog:   opts.Catalog,
		runtime:   opts.Runtime,
		instances: opts.Instances,
		validator: opts.Validator,
		launch:    opts.Launch,
		log:       opts.Log,
		now:       opts.Clock,
		states:    make(map[string]*model.RuntimeState),
		busy:      make(map[string]*Operation),
		subs:      make(map[int]*subscriber),
	}
}

// Status returns the current state for id, creating it on first access.
// Stable states are re-derived from the instance store on every call.
func (c *Controller) Status(id string) (model.RuntimeState, error) {
	d, err := c.catalog.Get(id)
	if err != nil {
		return model.RuntimeState{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.stateLocked(d)
	if err != nil {
		return model.RuntimeState{}, err
	}
	return *st, nil
}

// Busy returns the running operation for id, if any.
func (c *Controller) Busy(id string) (Operation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.busy[id]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

func (c *Controller) stateLocked(d model.ModpackDescriptor) (*model.RuntimeState, error) {
	st, ok := c.states[d.ID]
	if !ok {
		st = &model.RuntimeState{ModpackID: d.ID, Status: model.StatusNotInstalled}
		c.states[d.ID] = st
	}
	if st.Status.IsBusy() || st.Status == model.StatusError {
		return st, nil
	}

	inst, found, err := c.instances.Get(d.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case !found:
		st.Status = model.StatusNotInstalled
	case inst.Version != d.Version:
		st.Status = model.StatusOutdated
	default:
		st.Status = model.StatusInstalled
	}
	return st, nil
}

func (c *Controller) Install(ctx context.Context, id string, onProgress func(model.Progress)) error {
	return c.run(ctx, id, OpInstall, onProgress)
}

func (c *Controller) Update(ctx context.Context, id string, onProgress func(model.Progress)) error {
	return c.run(ctx, id, OpUpdate, onProgress)
}

func (c *Controller) Launch(ctx context.Context, id string, onProgress func(model.Progress)) error {
	return c.run(ctx, id, OpLaunch, onProgress)
}

func (c *Controller) Repair(ctx context.Context, id string, onProgress func(model.Progress)) error {
	return c.run(ctx, id, OpRepair, onProgress)
}

// Delete removes the installed instance and forgets its runtime state.
func (c *Controller) Delete(ctx context.Context, id string) error {
	d, err := c.catalog.Get(id)
	if err != nil {
		return err
	}
	op, err := c.acquire(d, OpDelete)
	if err != nil {
		return err
	}
	defer func() {
		c.mu.Lock()
		if c.busy[id] == op {
			delete(c.busy, id)
		}
		delete(c.states, id)
		c.mu.Unlock()
	}()

	if err := c.runtime.DeleteInstance(id); err != nil {
		return wrapRuntime(err)
	}
	if err := c.instances.Delete(id); err != nil {
		return err
	}
	c.log.Infow("Deleted instance", "modpack", id)
	return nil
}

func (c *Controller) run(ctx context.Context, id string, kind OpKind, onProgress func(model.Progress)) (err error) {
	d, err := c.catalog.Get(id)
	if err != nil {
		return err
	}
	if kind.needsArchive() && !d.HasArchive() {
		return archiveNotAvailable(d)
	}

	op, err := c.acquire(d, kind)
	if err != nil {
		return err
	}
	defer func() { c.finish(d, op, err) }()

	c.log.Infow("Starting operation", "modpack", id, "op", kind, "handle", op.ID)

	state := &opState{tracker: progress.NewTracker(c.now), onProgress: onProgress}
	switch kind {
	case OpInstall, OpUpdate:
		return c.installFlow(ctx, d, state)
	case OpRepair:
		if err := c.runtime.DeleteInstance(d.ID); err != nil {
			return wrapRuntime(err)
		}
		if err := c.instances.Delete(d.ID); err != nil {
			c.log.Warnw("Failed to clear instance record before repair", "modpack", d.ID, "error", err)
		}
		if err := c.runtime.DiscardArchive(d); err != nil {
			return wrapRuntime(err)
		}
		return c.installFlow(ctx, d, state)
	case OpLaunch:
		if err := c.runtime.Launch(ctx, d, c.launch); err != nil {
			return wrapRuntime(err)
		}
		return nil
	}
	return nil
}

func archiveNotAvailable(d model.ModpackDescriptor) error {
	if d.ServerIP != "" {
		return model.NewError(model.KindArchiveNotAvailable, nil, "server IP: %s", d.ServerIP)
	}
	return model.NewError(model.KindArchiveNotAvailable, nil, "modpack %q has no downloadable archive", d.ID)
}

// acquire inserts a busy entry for d.ID if none exists and the action is valid
// from the current stable state.
func (c *Controller) acquire(d model.ModpackDescriptor, kind OpKind) (*Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if running, ok := c.busy[d.ID]; ok {
		return nil, model.NewError(model.KindAlreadyInProgress, nil, "%s is already running for %s", running.Kind, d.ID)
	}
	st, err := c.stateLocked(d)
	if err != nil {
		return nil, err
	}
	if !kind.allowedFrom(st.Status) {
		return nil, model.NewError(model.KindBusyStateConflict, nil, "cannot %s %s while it is %s", kind, d.ID, st.Status)
	}

	op := newOperation(d.ID, kind, c.now())
	c.busy[d.ID] = op

	if busy, ok := kind.busyStatus(); ok {
		st.Status = busy
		st.Progress = model.Progress{}
		st.ErrorKind = ""
		st.ErrorMessage = ""
		c.publishLocked(Event{ModpackID: d.ID, State: *st})
	}
	return op, nil
}

// finish records the terminal state, releases the busy entry and publishes
// the terminal event. All progress has been drained by the time it runs.
func (c *Controller) finish(d model.ModpackDescriptor, op *Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy[d.ID] == op {
		delete(c.busy, d.ID)
	}

	st := c.states[d.ID]
	if err != nil {
		st.Status = model.StatusError
		st.ErrorKind = model.KindOf(err)
		st.ErrorMessage = model.DetailOf(err)
		c.log.Errorw("Operation failed", "modpack", d.ID, "op", op.Kind, "kind", st.ErrorKind, "error", err)
	} else {
		st.Status = model.StatusNotInstalled
		if _, derr := c.stateLocked(d); derr != nil {
			c.log.Warnw("Failed to derive status after operation", "modpack", d.ID, "error", derr)
		}
		c.log.Infow("Operation finished", "modpack", d.ID, "op", op.Kind, "took", c.now().Sub(op.Started))
	}
	c.publishLocked(Event{ModpackID: d.ID, State: *st, Terminal: true})
}

func (c *Controller) installFlow(ctx context.Context, d model.ModpackDescriptor, st *opState) error {
	var archivePath string
	err := c.phase(d.ID, st, fetchShare, func(samples chan<- model.Sample) error {
		var err error
		archivePath, err = c.runtime.FetchArchive(ctx, d, samples)
		return err
	})
	if err != nil {
		return wrapRuntime(err)
	}

	if c.validator != nil {
		res, err := c.validator.Validate(ctx, archivePath)
		if err != nil {
			if model.KindOf(err) == model.KindInvalidArchive {
				if derr := c.runtime.DiscardArchive(d); derr != nil {
					c.log.Warnw("Failed to discard invalid archive", "modpack", d.ID, "error", derr)
				}
			}
			return err
		}
		if !res.CanContinue() {
			return missingMods(res.TrulyMissing())
		}
		if res.PartialFailure != nil {
			c.log.Warnw("Some mod metadata could not be fetched", "modpack", d.ID, "error", res.PartialFailure)
		}
	}

	err = c.phase(d.ID, st, installShare, func(samples chan<- model.Sample) error {
		return c.runtime.InstallArchive(ctx, d, archivePath, samples)
	})
	if err != nil {
		return wrapRuntime(err)
	}

	return c.instances.Save(d.ID, d.Version, c.now())
}

func missingMods(mods []manifest.ModFileInfo) error {
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, m.String())
	}
	sort.Strings(names)
	return model.NewError(model.KindMissingMods, nil, "%d mod(s) must be added manually: %s", len(names), strings.Join(names, ", "))
}

// wrapRuntime tags untyped collaborator errors, keeping their message.
func wrapRuntime(err error) error {
	if model.KindOf(err) != model.KindUnknown {
		return err
	}
	return model.NewError(model.KindRuntimeOperationFailed, err, "")
}
