package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LowpassHann designs a linear-phase FIR low-pass with numTaps coefficients,
// windowed by a symmetric Hann window. cutoff is normalised to the Nyquist
// frequency (0 < cutoff < 1). Coefficients are scaled for unity gain at DC.
func LowpassHann(numTaps int, cutoff float64) ([]float64, error) {
	if numTaps < 1 {
		return nil, fmt.Errorf("lowpass: num taps must be positive, got %d", numTaps)
	}
	if cutoff <= 0 || cutoff >= 1 {
		return nil, fmt.Errorf("lowpass: cutoff %g must lie in (0, 1)", cutoff)
	}
	taps := make([]float64, numTaps)
	alpha := float64(numTaps-1) / 2
	for n := range taps {
		m := float64(n) - alpha
		taps[n] = cutoff * sinc(cutoff*m) * hann(n, numTaps)
	}
	floats.Scale(1/floats.Sum(taps), taps)
	return taps, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func hann(n, size int) float64 {
	if size == 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(size-1))
}

// ApplyFIR filters x causally with taps, zero initial state, returning a new
// slice of the same length.
func ApplyFIR(taps, x []float64) []float64 {
	out := make([]float64, len(x))
	if len(taps) == 0 {
		return out
	}
	reversed := make([]float64, len(taps))
	for i, v := range taps {
		reversed[len(taps)-1-i] = v
	}
	for n := range x {
		lo := n - len(taps) + 1
		if lo >= 0 {
			out[n] = floats.Dot(reversed, x[lo:n+1])
			continue
		}
		out[n] = floats.Dot(reversed[-lo:], x[:n+1])
	}
	return out
}
