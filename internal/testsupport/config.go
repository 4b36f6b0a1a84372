package testsupport

import (
	"path/filepath"
	"testing"

	"msconvert/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sorter timing is shortened so retry paths finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RunDB = filepath.Join(base, "runs.db")
	cfgVal.Sorter.NumWorkers = 1
	cfgVal.Sorter.MaxAttempts = 2
	cfgVal.Sorter.StallTimeoutSeconds = 1
	cfgVal.Sorter.PollIntervalMillis = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWaveformFill selects the export filler method.
func WithWaveformFill(method string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.WaveformFill = method
	}
}

// WithCleanup toggles removal of intermediates after a complete run.
func WithCleanup(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.Cleanup = enabled
	}
}

// WithSorterOutputs toggles the whitened and masked sorter outputs.
func WithSorterOutputs(whiten, mask bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sorter.Whiten = whiten
		b.cfg.Sorter.Mask = mask
	}
}

// WithNotch enables the line-noise notch filter on Bin conversion.
func WithNotch(freq int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.NotchFilter = true
		b.cfg.Conversion.NotchFreq = freq
	}
}

// WithParallelSessions sets the batch concurrency.
func WithParallelSessions(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.ParallelSessions = n
	}
}
