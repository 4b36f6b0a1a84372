package services_test

import (
	"errors"
	"strings"
	"testing"

	"msconvert/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "sort", "ml-run-process", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sort", "ml-run-process", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestCodecErrorsAreDistinguishable(t *testing.T) {
	truncated := services.Wrap(services.ErrTruncated, "rhd", "read", "partial block", nil)
	if !services.IsCodecError(truncated) {
		t.Fatalf("expected codec error for %v", truncated)
	}
	missing := services.Wrap(services.ErrMissingSource, "session", "resolve", "no .bin", nil)
	if services.IsCodecError(missing) {
		t.Fatalf("missing source must not be a codec error")
	}
}

func TestOutcomeMapping(t *testing.T) {
	cases := map[string]error{
		"complete": nil,
		"corrupt":  services.Wrap(services.ErrFormat, "rhd", "header", "bad magic", nil),
		"skipped":  services.Wrap(services.ErrMissingSource, "session", "", "", nil),
		"retry":    services.Wrap(services.ErrSorterTimeout, "sort", "", "", nil),
		"failed":   services.Wrap(services.ErrSorterAbort, "sort", "", "", nil),
	}
	for want, err := range cases {
		if got := services.Outcome(err); got != want {
			t.Fatalf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}
