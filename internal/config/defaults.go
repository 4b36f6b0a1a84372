package config

const (
	defaultLogDir              = "~/.local/share/msconvert/logs"
	defaultRunDB               = "~/.local/share/msconvert/runs.db"
	defaultSorterBinary        = "ml-run-process"
	defaultSorterPipeline      = "ms4_geoff.sort"
	defaultFreqMin             = 300
	defaultFreqMax             = 6000
	defaultDetectThreshold     = 3
	defaultDetectInterval      = 10
	defaultClipSize            = 50
	defaultPreSpike            = 15
	defaultPostSpike           = 35
	defaultMaskThreshold       = 6
	defaultMaskNumWriteChunks  = 100
	defaultNumFeatures         = 10
	defaultMaxNumClipsForPCA   = 1000
	defaultFiringRateThresh    = 0.05
	defaultIsolationThresh     = 0.95
	defaultNoiseOverlapThresh  = 0.03
	defaultPeakSNRThresh       = 1.5
	defaultStallTimeoutSeconds = 600
	defaultMaxAttempts         = 5
	defaultPollIntervalMillis  = 500
	defaultNotchFreq           = 60
	defaultProbe               = "axona16_new"
	defaultWaveformFill        = "zero"
	defaultParallelSessions    = 1
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
			RunDB:  defaultRunDB,
		},
		Sorter: Sorter{
			Binary:              defaultSorterBinary,
			Pipeline:            defaultSorterPipeline,
			FreqMin:             defaultFreqMin,
			FreqMax:             defaultFreqMax,
			DetectSign:          0,
			DetectThreshold:     defaultDetectThreshold,
			DetectInterval:      defaultDetectInterval,
			ClipSize:            defaultClipSize,
			PreSpike:            defaultPreSpike,
			PostSpike:           defaultPostSpike,
			Whiten:              true,
			Mask:                true,
			MaskThreshold:       defaultMaskThreshold,
			MaskNumWriteChunks:  defaultMaskNumWriteChunks,
			NumFeatures:         defaultNumFeatures,
			MaxNumClipsForPCA:   defaultMaxNumClipsForPCA,
			FiringRateThresh:    defaultFiringRateThresh,
			IsolationThresh:     defaultIsolationThresh,
			NoiseOverlapThresh:  defaultNoiseOverlapThresh,
			PeakSNRThresh:       defaultPeakSNRThresh,
			StallTimeoutSeconds: defaultStallTimeoutSeconds,
			MaxAttempts:         defaultMaxAttempts,
			PollIntervalMillis:  defaultPollIntervalMillis,
		},
		Conversion: Conversion{
			NotchFreq:    defaultNotchFreq,
			DefaultProbe: defaultProbe,
		},
		Export: Export{
			WaveformFill: defaultWaveformFill,
			Cleanup:      true,
		},
		Batch: Batch{
			ParallelSessions: defaultParallelSessions,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
