package services

import "context"

type contextKey int

const (
	sessionKey contextKey = iota
	tetrodeKey
	stageKey
	runIDKey
)

// WithSession annotates context with the session basename being processed.
func WithSession(ctx context.Context, basename string) context.Context {
	return withValue(ctx, sessionKey, basename)
}

// SessionFromContext returns the session basename if present.
func SessionFromContext(ctx context.Context) (string, bool) {
	return value[string](ctx, sessionKey)
}

// WithTetrode annotates context with the 1-based tetrode number. Non-positive
// numbers are ignored.
func WithTetrode(ctx context.Context, tetrode int) context.Context {
	if tetrode <= 0 {
		return ctx
	}
	return withValue(ctx, tetrodeKey, tetrode)
}

func TetrodeFromContext(ctx context.Context) (int, bool) {
	return value[int](ctx, tetrodeKey)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return value[string](ctx, stageKey)
}

// WithRunID annotates context with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	return value[string](ctx, runIDKey)
}

// withValue stores v unless it is the zero value.
func withValue[T comparable](ctx context.Context, key contextKey, v T) context.Context {
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func value[T comparable](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	if !ok || v == zero {
		return zero, false
	}
	return v, true
}
