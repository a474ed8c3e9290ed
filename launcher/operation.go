package launcher

import (
	"time"

	"github.com/google/uuid"

	"luminakraft-launcher/model"
)

// OpKind names a lifecycle action.
type OpKind string

const (
	OpInstall OpKind = "install"
	OpUpdate  OpKind = "update"
	OpLaunch  OpKind = "launch"
	OpRepair  OpKind = "repair"
	OpDelete  OpKind = "delete"
)

// busyStatus is the transient status shown while an action runs. Delete has
// none: the entry disappears when it finishes.
func (k OpKind) busyStatus() (model.Status, bool) {
	switch k {
	case OpInstall:
		return model.StatusInstalling, true
	case OpUpdate:
		return model.StatusUpdating, true
	case OpLaunch:
		return model.StatusLaunching, true
	case OpRepair:
		return model.StatusRepairing, true
	default:
		return "", false
	}
}

// needsArchive reports whether the action downloads the modpack archive.
func (k OpKind) needsArchive() bool {
	return k == OpInstall || k == OpUpdate || k == OpRepair
}

// allowedFrom reports whether the action may start from a stable status.
func (k OpKind) allowedFrom(s model.Status) bool {
	switch k {
	case OpInstall:
		return s == model.StatusNotInstalled || s == model.StatusError
	case OpUpdate, OpLaunch:
		return s == model.StatusInstalled || s == model.StatusOutdated
	case OpRepair:
		return s == model.StatusInstalled || s == model.StatusOutdated || s == model.StatusError
	case OpDelete:
		return s != model.StatusNotInstalled
	default:
		return false
	}
}

// Operation is the handle stored in the busy map while an action runs.
type Operation struct {
	ID        string
	ModpackID string
	Kind      OpKind
	Started   time.Time
}

func newOperation(modpackID string, kind OpKind, now time.Time) *Operation {
	return &Operation{
		ID:        uuid.NewString(),
		ModpackID: modpackID,
		Kind:      kind,
		Started:   now,
	}
}
