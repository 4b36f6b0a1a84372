package waveform

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"msconvert/internal/services"
)

// Method selects how samples outside snippets are filled.
type Method string

const (
	Zero Method = "zero"
	Ramp Method = "ramp"
	Sin  Method = "sin"
)

const (
	defaultSinFreq = 500
	defaultSinAmp  = 100
	defaultSigmas  = 3
)

// ParseMethod validates a fill method name.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case Zero, Ramp, Sin:
		return m, nil
	case "":
		return Zero, nil
	default:
		return "", services.Wrap(services.ErrValidation, "waveform", "parse method", fmt.Sprintf("unknown fill %q", name), nil)
	}
}

// Options controls reconstruction.
type Options struct {
	Method Method
	// Rate is the sample rate in Hz; used by Sin.
	Rate float64
	// Threshold is the detection threshold the Sin filler must stay below.
	// Zero derives one per channel as mean + Sigmas*stddev of its snippets.
	Threshold float64
	Sigmas    float64
	SinFreq   float64
	SinAmp    float64
}

func (o Options) withDefaults() Options {
	if o.Method == "" {
		o.Method = Zero
	}
	if o.Sigmas <= 0 {
		o.Sigmas = defaultSigmas
	}
	if o.SinFreq <= 0 {
		o.SinFreq = defaultSinFreq
	}
	if o.SinAmp <= 0 {
		o.SinAmp = defaultSinAmp
	}
	return o
}

// Reconstruct returns one continuous series of length total per channel.
// snippets[ch] holds len(starts) consecutive snippets of snippetLen samples;
// snippet i begins at sample starts[i]. Snippet samples always overwrite the
// filler, later snippets winning where they overlap.
func Reconstruct(snippets [][]float64, starts []int, snippetLen, total int, opts Options) ([][]float64, error) {
	opts = opts.withDefaults()
	if snippetLen <= 0 || total < 0 {
		return nil, services.Wrap(services.ErrValidation, "waveform", "reconstruct", "snippet length and total must be positive", nil)
	}
	for ch, data := range snippets {
		if len(data) != len(starts)*snippetLen {
			return nil, services.Wrap(services.ErrValidation, "waveform", "reconstruct",
				fmt.Sprintf("channel %d has %d samples, want %d", ch, len(data), len(starts)*snippetLen), nil)
		}
	}
	for i, s := range starts {
		if s < 0 || s+snippetLen > total {
			return nil, services.Wrap(services.ErrValidation, "waveform", "reconstruct",
				fmt.Sprintf("snippet %d at %d does not fit in %d samples", i, s, total), nil)
		}
	}
	if opts.Method == Sin && opts.Rate <= 0 {
		return nil, services.Wrap(services.ErrValidation, "waveform", "reconstruct", "sin fill needs a sample rate", nil)
	}

	out := make([][]float64, len(snippets))
	for ch, data := range snippets {
		series := make([]float64, total)
		switch opts.Method {
		case Ramp:
			fillRamp(series, data, starts, snippetLen)
		case Sin:
			fillSin(series, data, opts)
		case Zero:
		default:
			return nil, services.Wrap(services.ErrValidation, "waveform", "reconstruct", fmt.Sprintf("unknown fill %q", opts.Method), nil)
		}
		for i, s := range starts {
			copy(series[s:s+snippetLen], data[i*snippetLen:(i+1)*snippetLen])
		}
		out[ch] = series
	}
	return out, nil
}

// fillRamp draws a line from the last sample of each snippet to the first
// sample of the next. Adjacent snippets leave nothing to fill.
func fillRamp(series, data []float64, starts []int, snippetLen int) {
	for i := 0; i+1 < len(starts); i++ {
		from := starts[i] + snippetLen - 1
		to := starts[i+1]
		if to-from <= 1 {
			continue
		}
		y0 := data[(i+1)*snippetLen-1]
		y1 := data[(i+1)*snippetLen]
		slope := (y1 - y0) / float64(to-from)
		for k := 0; k < to-from; k++ {
			series[from+k] = y0 + slope*float64(k)
		}
	}
}

// fillSin writes a sinusoid, halving its amplitude until the peak falls
// below the channel's detection threshold.
func fillSin(series, data []float64, opts Options) {
	threshold := opts.Threshold
	if threshold <= 0 && len(data) > 0 {
		mean, std := stat.MeanStdDev(data, nil)
		threshold = math.Abs(mean) + opts.Sigmas*std
	}
	step := 2 * math.Pi * opts.SinFreq / opts.Rate
	for i := range series {
		series[i] = math.Sin(step * float64(i))
	}
	if len(series) == 0 {
		return
	}
	peak := floats.Max(series)
	amp := opts.SinAmp
	for amp*peak >= threshold && amp > 1e-6 {
		amp /= 2
	}
	floats.Scale(amp, series)
}
