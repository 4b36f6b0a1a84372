package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSorter()
	c.normalizeConversion()
	c.normalizeExport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.RunDB, err = ExpandPath(strings.TrimSpace(c.Paths.RunDB)); err != nil {
		return fmt.Errorf("paths.run_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeSorter() {
	if value, ok := os.LookupEnv("MSCONVERT_SORTER_BINARY"); ok && strings.TrimSpace(value) != "" {
		c.Sorter.Binary = value
	}
	c.Sorter.Binary = strings.TrimSpace(c.Sorter.Binary)
	if c.Sorter.Binary == "" {
		c.Sorter.Binary = defaultSorterBinary
	}
	c.Sorter.Pipeline = strings.TrimSpace(c.Sorter.Pipeline)
	if c.Sorter.Pipeline == "" {
		c.Sorter.Pipeline = defaultSorterPipeline
	}
	if c.Sorter.MaxAttempts <= 0 {
		c.Sorter.MaxAttempts = defaultMaxAttempts
	}
	if c.Sorter.PollIntervalMillis <= 0 {
		c.Sorter.PollIntervalMillis = defaultPollIntervalMillis
	}
}

func (c *Config) normalizeConversion() {
	c.Conversion.DefaultProbe = strings.ToLower(strings.TrimSpace(c.Conversion.DefaultProbe))
	if c.Conversion.DefaultProbe == "" {
		c.Conversion.DefaultProbe = defaultProbe
	}
	if c.Conversion.NotchFreq == 0 {
		c.Conversion.NotchFreq = defaultNotchFreq
	}
}

func (c *Config) normalizeExport() {
	c.Export.WaveformFill = strings.ToLower(strings.TrimSpace(c.Export.WaveformFill))
	if c.Export.WaveformFill == "" {
		c.Export.WaveformFill = defaultWaveformFill
	}
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("MSCONVERT_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
