package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir"`
	RunDB  string `toml:"run_db"`
}

// Sorter contains the external spike sorter invocation and its parameters.
type Sorter struct {
	Binary              string  `toml:"binary"`
	Pipeline            string  `toml:"pipeline"`
	FreqMin             int     `toml:"freq_min"`
	FreqMax             int     `toml:"freq_max"`
	DetectSign          int     `toml:"detect_sign"`
	DetectThreshold     float64 `toml:"detect_threshold"`
	DetectInterval      int     `toml:"detect_interval"`
	ClipSize            int     `toml:"clip_size"`
	PreSpike            int     `toml:"pre_spike"`
	PostSpike           int     `toml:"post_spike"`
	Whiten              bool    `toml:"whiten"`
	Mask                bool    `toml:"mask"`
	MaskThreshold       int     `toml:"mask_threshold"`
	MaskChunkSize       int     `toml:"mask_chunk_size"`
	MaskNumWriteChunks  int     `toml:"mask_num_write_chunks"`
	NumFeatures         int     `toml:"num_features"`
	MaxNumClipsForPCA   int     `toml:"max_num_clips_for_pca"`
	NumWorkers          int     `toml:"num_workers"`
	FiringRateThresh    float64 `toml:"firing_rate_thresh"`
	IsolationThresh     float64 `toml:"isolation_thresh"`
	NoiseOverlapThresh  float64 `toml:"noise_overlap_thresh"`
	PeakSNRThresh       float64 `toml:"peak_snr_thresh"`
	StallTimeoutSeconds int     `toml:"stall_timeout_seconds"`
	MaxAttempts         int     `toml:"max_attempts"`
	PollIntervalMillis  int     `toml:"poll_interval_ms"`
}

// Conversion contains settings for turning source recordings into MDA input.
type Conversion struct {
	NotchFilter  bool   `toml:"notch_filter"`
	NotchFreq    int    `toml:"notch_freq"`
	DefaultProbe string `toml:"default_probe"`
}

// Export contains settings for the Tint export stage.
type Export struct {
	WaveformFill string `toml:"waveform_fill"`
	Cleanup      bool   `toml:"cleanup"`
}

// Batch contains settings for multi-session runs.
type Batch struct {
	ParallelSessions int `toml:"parallel_sessions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for msconvert.
//
// Configuration sections by subsystem:
//   - Paths: log directory and run ledger location
//   - Sorter: ml-run-process invocation and sorting parameters
//   - Conversion: source-to-MDA options and probe fallback
//   - Export: Tint export and intermediate cleanup
//   - Batch: cross-session parallelism
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Sorter     Sorter     `toml:"sorter"`
	Conversion Conversion `toml:"conversion"`
	Export     Export     `toml:"export"`
	Batch      Batch      `toml:"batch"`
	Logging    Logging    `toml:"logging"`
}

// ErrConfigExists is returned by WriteSample when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

// Load locates, parses, and validates a configuration file. It returns the
// config with paths expanded, the resolved file path, and whether that file
// existed. A missing file yields the built-in defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := decodeStrict(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// decodeStrict rejects unknown keys and reports the offending line.
func decodeStrict(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(cfg)

	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		keys := make([]string, 0, len(strict.Errors))
		for _, e := range strict.Errors {
			row, _ := e.Position()
			keys = append(keys, fmt.Sprintf("%s (line %d)", strings.Join(e.Key(), "."), row))
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Errorf("line %d column %d: %w", row, col, err)
	}
	return err
}

// EnsureDirectories creates the log directory and the run ledger's parent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, filepath.Dir(c.Paths.RunDB)} {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SorterWorkers returns the worker count passed to the sorter, resolving 0 to the CPU count.
func (c *Config) SorterWorkers() int {
	if c.Sorter.NumWorkers > 0 {
		return c.Sorter.NumWorkers
	}
	return runtime.NumCPU()
}

// MaskChunkSize resolves the artifact-mask chunk size for a given sample rate.
func (c *Config) MaskChunkSize(sampleRate int) int {
	if c.Sorter.MaskChunkSize > 0 {
		return c.Sorter.MaskChunkSize
	}
	return sampleRate / 20
}

// WriteSample writes the annotated sample configuration to path. Unless
// overwrite is set an existing file is left alone and ErrConfigExists returned.
func WriteSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		_ = file.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return file.Close()
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return sb.String(), nil
}
