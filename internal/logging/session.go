package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// SessionLogPath returns the per-session JSON log location for a session base name.
func SessionLogPath(logDir, sessionBase string) string {
	name := filepath.Base(sessionBase)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "session"
	}
	return filepath.Join(logDir, name+".log")
}

// NewSessionLogger returns a logger that writes to base and appends JSON to
// the session's log file under logDir. Closing the returned closer releases
// the file; with no logDir, base is returned unchanged.
func NewSessionLogger(base *slog.Logger, logDir, sessionBase, level string) (*slog.Logger, io.Closer, error) {
	if strings.TrimSpace(logDir) == "" {
		return base, io.NopCloser(nil), nil
	}
	file, err := OpenFile(SessionLogPath(logDir, sessionBase))
	if err != nil {
		return nil, nil, err
	}
	return TeeLogger(base, newJSONHandler(file, ParseLevel(level), false)), file, nil
}

// TeeLogger returns a logger whose records reach base and every extra handler.
// Each sink applies its own level.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	sinks := make([]slog.Handler, 0, len(extra)+1)
	if base != nil {
		sinks = append(sinks, base.Handler())
	}
	for _, h := range extra {
		if h != nil {
			sinks = append(sinks, h)
		}
	}
	switch len(sinks) {
	case 0:
		return NewNop()
	case 1:
		return slog.New(sinks[0])
	}
	return slog.New(teeHandler(sinks))
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = fn(h)
	}
	return next
}
