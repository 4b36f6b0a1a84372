// Package logging assembles the structured slog loggers used across msconvert.
//
// It owns the console and JSON handlers, routes output to stderr and the log
// directory, tees per-session JSON logs, and exposes context-aware helpers so
// stage code tags lines with the session, tetrode, stage, and run ID. A no-op
// logger is provided for tests, and PruneLogs enforces log retention.
package logging
