package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"rommedia/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransientDownload, "media", "fetch", "read body", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransientDownload) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"media", "fetch", "read body"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		halting   bool
		kind      string
	}{
		{"nil", nil, false, false, ""},
		{"transient lookup", services.Wrap(services.ErrTransientLookup, "lookup", "", "", nil), true, false, "transient_lookup"},
		{"corrupt", fmt.Errorf("outer: %w", services.ErrCorruptDownload), true, false, "corrupt_download"},
		{"not found", services.ErrNotFound, false, false, "not_found"},
		{"quota", services.Wrap(services.ErrQuotaExhausted, "ratelimit", "acquire", "", nil), false, true, "quota_exhausted"},
		{"unauthorized", services.ErrUnauthorized, false, true, "unauthorized"},
		{"ambiguous container", services.ErrAmbiguousContainer, false, false, "ambiguous_container"},
		{"unknown", errors.New("other"), false, false, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Retryable(tt.err); got != tt.retryable {
				t.Fatalf("Retryable = %v, want %v", got, tt.retryable)
			}
			if got := services.Halting(tt.err); got != tt.halting {
				t.Fatalf("Halting = %v, want %v", got, tt.halting)
			}
			if got := services.Kind(tt.err); got != tt.kind {
				t.Fatalf("Kind = %q, want %q", got, tt.kind)
			}
		})
	}
}
