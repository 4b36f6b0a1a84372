package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for errors.Is classification.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")

	// Codec failures. These are fatal for the file they describe and must never
	// be reported as "not yet converted".
	ErrFormat              = errors.New("format error")
	ErrTruncated           = errors.New("truncated file")
	ErrInconsistentSession = errors.New("inconsistent session")
	ErrUnsupportedType     = errors.New("unsupported type")

	ErrMissingSource  = errors.New("missing source")
	ErrReconciliation = errors.New("reconciliation error")

	// Sorter outcomes: timeout is retryable, abort is not.
	ErrSorterTimeout = errors.New("sorter timeout")
	ErrSorterAbort   = errors.New("sorter abort")
)

// Ledger outcomes returned by Outcome.
const (
	OutcomeComplete = "complete"
	OutcomeCorrupt  = "corrupt"
	OutcomeSkipped  = "skipped"
	OutcomeRetry    = "retry"
	OutcomeFailed   = "failed"
)

// Wrap tags err with marker, one of the sentinels above, and prefixes the
// message with whichever of stage, operation, and message are non-empty.
// A nil marker is treated as ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, p := range []string{stage, operation, message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// IsCodecError reports whether err stems from an unreadable or corrupt source
// file rather than from missing work.
func IsCodecError(err error) bool {
	for _, codec := range []error{ErrFormat, ErrTruncated, ErrInconsistentSession, ErrUnsupportedType} {
		if errors.Is(err, codec) {
			return true
		}
	}
	return false
}

// Outcome classifies an error for the run ledger.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeComplete
	case IsCodecError(err):
		return OutcomeCorrupt
	case errors.Is(err, ErrMissingSource):
		return OutcomeSkipped
	case errors.Is(err, ErrSorterTimeout), errors.Is(err, ErrTransient):
		return OutcomeRetry
	default:
		return OutcomeFailed
	}
}
