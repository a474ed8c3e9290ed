package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := NewError(KindArchiveNotAvailable, nil, "server IP: %s", "play.example.net")
	wrapped := fmt.Errorf("install failed: %w", err)

	if !errors.Is(wrapped, ErrArchiveNotAvailable) {
		t.Error("errors.Is(wrapped, ErrArchiveNotAvailable) = false")
	}
	if errors.Is(wrapped, ErrAlreadyInProgress) {
		t.Error("errors.Is matched a different kind")
	}
	if got := KindOf(wrapped); got != KindArchiveNotAvailable {
		t.Errorf("KindOf() = %q", got)
	}
	if got := DetailOf(wrapped); got != "server IP: play.example.net" {
		t.Errorf("DetailOf() = %q", got)
	}
}

func TestErrorKeepsCause(t *testing.T) {
	cause := errors.New("java exited with code 1")
	err := NewError(KindRuntimeOperationFailed, cause, "")

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if got := DetailOf(err); got != "java exited with code 1" {
		t.Errorf("DetailOf() = %q, want runtime message verbatim", got)
	}
	if got := err.Error(); got != "runtime_operation_failed: java exited with code 1" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Errorf("KindOf() = %q, want %q", got, KindUnknown)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestStatusIsBusy(t *testing.T) {
	busy := []Status{StatusInstalling, StatusUpdating, StatusLaunching, StatusRepairing}
	idle := []Status{StatusNotInstalled, StatusInstalled, StatusOutdated, StatusError}

	for _, s := range busy {
		if !s.IsBusy() {
			t.Errorf("%s.IsBusy() = false", s)
		}
	}
	for _, s := range idle {
		if s.IsBusy() {
			t.Errorf("%s.IsBusy() = true", s)
		}
	}
}
