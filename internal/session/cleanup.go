package session

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"msconvert/internal/logging"
)

// CleanupResult contains the outcome of removing intermediate files.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its removal error.
type CleanupError struct {
	Path  string
	Error error
}

// Intermediates lists the files a finished session no longer needs: the
// whitened signal, the raw input, and whichever of the filtered and masked
// signals was not the final sorter input.
func Intermediates(layout Layout, tetrodes []int, masked bool) []string {
	var paths []string
	for _, n := range tetrodes {
		paths = append(paths, layout.Pre(n), layout.Raw(n))
		if masked {
			paths = append(paths, layout.Filt(n))
		} else {
			paths = append(paths, layout.Masked(n))
		}
	}
	return paths
}

// Cleanup removes the intermediates of a fully converted session. Absent
// files are skipped silently.
func Cleanup(ctx context.Context, layout Layout, tetrodes []int, masked bool, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, path := range Intermediates(layout, tetrodes, masked) {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: ctx.Err()})
			return result
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logger.Warn("failed to remove intermediate file",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Debug("removed intermediate file",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "cleanup"),
		)
	}
	return result
}
