package model

import (
	"errors"
	"fmt"
)

// Kind is a stable, locale-agnostic error category.
type Kind string

const (
	KindArchiveNotAvailable         Kind = "archive_not_available"
	KindInvalidArchive              Kind = "invalid_archive"
	KindValidationTimeout           Kind = "validation_timeout"
	KindMetadataFetchPartialFailure Kind = "metadata_fetch_partial_failure"
	KindMissingMods                 Kind = "missing_mods"
	KindRuntimeOperationFailed      Kind = "runtime_operation_failed"
	KindUpdateCheckFailed           Kind = "update_check_failed"
	KindUpdateInstallFailed         Kind = "update_install_failed"
	KindAlreadyInProgress           Kind = "already_in_progress"
	KindBusyStateConflict           Kind = "busy_state_conflict"
	KindNotFound                    Kind = "not_found"
	KindUnknown                     Kind = "unknown"
)

// Sentinels for errors.Is; any *Error of the same kind matches them.
var (
	ErrArchiveNotAvailable         = &Error{Kind: KindArchiveNotAvailable}
	ErrInvalidArchive              = &Error{Kind: KindInvalidArchive}
	ErrValidationTimeout           = &Error{Kind: KindValidationTimeout}
	ErrMetadataFetchPartialFailure = &Error{Kind: KindMetadataFetchPartialFailure}
	ErrMissingMods                 = &Error{Kind: KindMissingMods}
	ErrRuntimeOperationFailed      = &Error{Kind: KindRuntimeOperationFailed}
	ErrUpdateCheckFailed           = &Error{Kind: KindUpdateCheckFailed}
	ErrUpdateInstallFailed         = &Error{Kind: KindUpdateInstallFailed}
	ErrAlreadyInProgress           = &Error{Kind: KindAlreadyInProgress}
	ErrBusyStateConflict           = &Error{Kind: KindBusyStateConflict}
	ErrNotFound                    = &Error{Kind: KindNotFound}
)

// Error carries a Kind, an optional human readable detail and the cause.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind only, so sentinels compare equal to any detailed error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind Kind, cause error, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailOf returns a human readable message for err without the kind prefix.
// Runtime failures keep the collaborator's message verbatim.
func DetailOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch {
	case e.Detail != "" && e.Err != nil:
		return e.Detail + ": " + e.Err.Error()
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}
