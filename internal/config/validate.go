package config

import (
	"errors"
	"fmt"
	"sort"
)

// Known probe layouts.
var knownProbes = map[string]struct{}{
	"axona16_new":    {},
	"axona16_angled": {},
	"buzsaki16":      {},
	"buzsaki32":      {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSorter(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSorter() error {
	if err := ensurePositiveMap(map[string]int{
		"sorter.freq_min":              c.Sorter.FreqMin,
		"sorter.freq_max":              c.Sorter.FreqMax,
		"sorter.detect_interval":       c.Sorter.DetectInterval,
		"sorter.clip_size":             c.Sorter.ClipSize,
		"sorter.pre_spike":             c.Sorter.PreSpike,
		"sorter.post_spike":            c.Sorter.PostSpike,
		"sorter.mask_threshold":        c.Sorter.MaskThreshold,
		"sorter.mask_num_write_chunks": c.Sorter.MaskNumWriteChunks,
		"sorter.num_features":          c.Sorter.NumFeatures,
		"sorter.max_num_clips_for_pca": c.Sorter.MaxNumClipsForPCA,
		"sorter.stall_timeout_seconds": c.Sorter.StallTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Sorter.FreqMin >= c.Sorter.FreqMax {
		return errors.New("sorter.freq_min must be less than sorter.freq_max")
	}
	switch c.Sorter.DetectSign {
	case -1, 0, 1:
	default:
		return errors.New("sorter.detect_sign must be -1, 0, or 1")
	}
	if c.Sorter.DetectThreshold <= 0 {
		return errors.New("sorter.detect_threshold must be positive")
	}
	if c.Sorter.ClipSize != defaultClipSize {
		return fmt.Errorf("sorter.clip_size must be %d", defaultClipSize)
	}
	if c.Sorter.PreSpike+c.Sorter.PostSpike != c.Sorter.ClipSize {
		return errors.New("sorter.pre_spike + sorter.post_spike must equal sorter.clip_size")
	}
	if c.Sorter.MaskChunkSize < 0 {
		return errors.New("sorter.mask_chunk_size must be >= 0")
	}
	if c.Sorter.NumWorkers < 0 {
		return errors.New("sorter.num_workers must be >= 0")
	}
	return nil
}

func (c *Config) validateConversion() error {
	if _, ok := knownProbes[c.Conversion.DefaultProbe]; !ok {
		return fmt.Errorf("conversion.default_probe: unknown probe %q", c.Conversion.DefaultProbe)
	}
	if c.Conversion.NotchFreq != 50 && c.Conversion.NotchFreq != 60 {
		return errors.New("conversion.notch_freq must be 50 or 60")
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.WaveformFill {
	case "zero", "ramp", "sin":
		return nil
	default:
		return fmt.Errorf("export.waveform_fill: unsupported value %q", c.Export.WaveformFill)
	}
}

func (c *Config) validateBatch() error {
	if c.Batch.ParallelSessions <= 0 {
		return errors.New("batch.parallel_sessions must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
