package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"msconvert/internal/config"
	"msconvert/internal/logging"
	"msconvert/internal/services"
)

func newLogger(t *testing.T, format, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: format, Level: level, Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, &buf
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	return record
}

func TestNewFromConfigWritesJSONCopy(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("converted session", logging.String("session", "rat1"), logging.Bytes("size", 4096))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.AppLogName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	record := decodeLine(t, string(content))
	if record["msg"] != "converted session" || record["session"] != "rat1" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lower-case level, got %v", record["level"])
	}
	if record["size"] != float64(4096) {
		t.Fatalf("expected byte size as integer in JSON, got %v", record["size"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logger, buf := newLogger(t, "console", "info")
	logger.Info("message without source")
	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerAddsSourceAtDebug(t *testing.T) {
	logger, buf := newLogger(t, "console", "debug")
	logger.Debug("tracing")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected source location at debug level, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), " DBG ") {
		t.Fatalf("expected DBG tag, got %q", buf.String())
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logger, buf := newLogger(t, "console", "info")

	component := logging.NewComponentLogger(logger, "sorter").With(logging.String("session", "rat1"))
	component.Info("launching sorter",
		logging.Int("tetrode", 3),
		logging.String("note", "two words"),
		logging.Bytes("size", 2048),
		logging.Duration("elapsed", 1500*time.Microsecond),
		logging.Error(errors.New("boom")),
	)

	line := buf.String()
	for _, want := range []string{
		" INF [sorter] launching sorter",
		"session=rat1",
		"tetrode=3",
		`note="two words"`,
		`size="2.0 KiB"`,
		"elapsed=2ms",
		"error=boom",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
	if strings.Index(line, "session=rat1") > strings.Index(line, "tetrode=3") {
		t.Fatalf("bound attrs should precede record attrs: %q", line)
	}
}

func TestConsoleLoggerGroupsPrefixKeys(t *testing.T) {
	logger, buf := newLogger(t, "console", "info")
	logger.WithGroup("sorter").Info("params", slog.Group("mask", slog.Int("threshold", 6)), slog.Int("clip", 50))

	for _, want := range []string{"sorter.mask.threshold=6", "sorter.clip=50"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in %q", want, buf.String())
		}
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	logger, buf := newLogger(t, "console", "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "WRN shown") {
		t.Fatalf("unexpected level filtering: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"trace":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithContextAddsPipelineFields(t *testing.T) {
	logger, buf := newLogger(t, "json", "info")

	ctx := services.WithSession(context.Background(), "/data/rat1")
	ctx = services.WithStage(ctx, "sort")
	ctx = services.WithTetrode(ctx, 2)
	ctx = services.WithRunID(ctx, "run-1")
	logging.WithContext(ctx, logger).Info("tetrode sorted")

	record := decodeLine(t, buf.String())
	if record["session"] != "/data/rat1" || record["stage"] != "sort" || record["run_id"] != "run-1" {
		t.Fatalf("missing context fields: %v", record)
	}
	if record["tetrode"] != float64(2) {
		t.Fatalf("unexpected tetrode field: %v", record["tetrode"])
	}
}

func TestWithContextWithoutFieldsReturnsLogger(t *testing.T) {
	logger := logging.NewNop()
	if got := logging.WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected logger returned unchanged when context carries nothing")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logger, buf := newLogger(t, "json", "info")
	logging.WarnWithContext(logger, "tetrode skipped", "tetrode_skipped", logging.String(logging.FieldImpact, "no cut file"))

	record := decodeLine(t, buf.String())
	if record["level"] != "warn" {
		t.Fatalf("expected warn level: %v", record)
	}
	if record[logging.FieldEventType] != "tetrode_skipped" {
		t.Fatalf("missing event type: %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("missing default error hint: %v", record)
	}
	if record[logging.FieldImpact] != "no cut file" {
		t.Fatalf("caller impact should win: %v", record)
	}
}

func TestErrorWithContextOmitsImpact(t *testing.T) {
	logger, buf := newLogger(t, "json", "info")
	logging.ErrorWithContext(logger, "sort failed", "sort_failed", logging.Error(errors.New("exit 1")))

	record := decodeLine(t, buf.String())
	if record["level"] != "error" || record["error"] != "exit 1" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record[logging.FieldImpact]; ok {
		t.Fatalf("error records should not get an impact default: %v", record)
	}
}

func TestNewSessionLoggerTeesToSessionFile(t *testing.T) {
	base, baseBuf := newLogger(t, "console", "info")

	logDir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := logging.NewSessionLogger(base, logDir, "/recordings/rat1_day2", "debug")
	if err != nil {
		t.Fatalf("NewSessionLogger: %v", err)
	}
	logger.Debug("detail only in session log")
	logger.Info("session started")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(baseBuf.String(), "session started") {
		t.Fatal("expected base logger to receive the record")
	}
	if strings.Contains(baseBuf.String(), "detail only") {
		t.Fatal("base logger should keep its own level")
	}
	sessionPath := logging.SessionLogPath(logDir, "/recordings/rat1_day2")
	if filepath.Base(sessionPath) != "rat1_day2.log" {
		t.Fatalf("unexpected session log path %q", sessionPath)
	}
	content, err := os.ReadFile(sessionPath)
	if err != nil {
		t.Fatalf("read session log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 || decodeLine(t, lines[1])["msg"] != "session started" {
		t.Fatalf("unexpected session log: %q", content)
	}
}

func TestNewSessionLoggerWithoutDirReturnsBase(t *testing.T) {
	base := logging.NewNop()
	logger, closer, err := logging.NewSessionLogger(base, "", "rat1", "info")
	if err != nil {
		t.Fatalf("NewSessionLogger: %v", err)
	}
	if logger != base {
		t.Fatal("expected base logger when no log dir is configured")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTeeLoggerRoutesByLevel(t *testing.T) {
	var info, debug bytes.Buffer
	logger := logging.TeeLogger(
		nil,
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		nil,
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	).With("session", "rat1")

	logger.Debug("detail")
	logger.Info("summary")

	if strings.Contains(info.String(), "detail") {
		t.Fatal("info sink should not receive debug records")
	}
	if !strings.Contains(debug.String(), "detail") || !strings.Contains(debug.String(), "summary") {
		t.Fatalf("debug sink missing records: %s", debug.String())
	}
	if !strings.Contains(info.String(), `"session":"rat1"`) {
		t.Fatalf("WithAttrs not propagated: %s", info.String())
	}
}

func TestPruneLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	freshPath := filepath.Join(dir, "fresh.log")
	keepPath := filepath.Join(dir, logging.AppLogName)
	otherPath := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldPath, freshPath, keepPath, otherPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{oldPath, keepPath, otherPath} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if removed := logging.PruneLogs(logging.NewNop(), dir, 5, logging.AppLogName); removed != 1 {
		t.Fatalf("expected one file pruned, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("expected expired log to be removed")
	}
	for _, path := range []string{freshPath, keepPath, otherPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain", filepath.Base(path))
		}
	}
}

func TestPruneLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(-1, 0, 0)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if removed := logging.PruneLogs(nil, dir, 0); removed != 0 {
		t.Fatalf("retention 0 should keep everything, removed %d", removed)
	}
}
