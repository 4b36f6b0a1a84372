package logging

import (
	"context"
	"log/slog"

	"msconvert/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent = "component"
	// FieldSession holds the session base path.
	FieldSession = "session"
	// FieldTetrode holds a 1-based tetrode number.
	FieldTetrode   = "tetrode"
	FieldStage     = "stage"
	FieldRunID     = "run_id"
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the consequence of a warning.
	FieldImpact = "impact"
)

// WithContext binds the run, session, stage, and tetrode carried by ctx to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := services.RunIDFromContext(ctx); ok {
		args = append(args, slog.String(FieldRunID, id))
	}
	if session, ok := services.SessionFromContext(ctx); ok {
		args = append(args, slog.String(FieldSession, session))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		args = append(args, slog.String(FieldStage, stage))
	}
	if tetrode, ok := services.TetrodeFromContext(ctx); ok {
		args = append(args, slog.Int(FieldTetrode, tetrode))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
