package dsp

import (
	"fmt"
	"math"
)

// DefaultNotchQ is the quality factor used for mains notch filtering.
const DefaultNotchQ = 30

// Biquad is a second-order IIR section with a[0] normalised to 1.
type Biquad struct {
	B [3]float64
	A [3]float64
}

// Notch designs a notch at freq Hz for a signal sampled at rate Hz.
func Notch(freq, rate, q float64) (Biquad, error) {
	nyquist := rate / 2
	if freq <= 0 || freq >= nyquist {
		return Biquad{}, fmt.Errorf("notch: frequency %g outside (0, %g)", freq, nyquist)
	}
	if q <= 0 {
		return Biquad{}, fmt.Errorf("notch: quality factor must be positive, got %g", q)
	}
	w0 := freq / nyquist
	bw := w0 / q * math.Pi
	w0 *= math.Pi
	beta := math.Tan(bw / 2)
	gain := 1 / (1 + beta)
	c := math.Cos(w0)
	return Biquad{
		B: [3]float64{gain, -2 * gain * c, gain},
		A: [3]float64{1, -2 * gain * c, 2*gain - 1},
	}, nil
}

// Filter runs the section over x once in the forward direction.
func (q Biquad) Filter(x []float64) []float64 {
	out := make([]float64, len(x))
	var x1, x2, y1, y2 float64
	for n, v := range x {
		y := q.B[0]*v + q.B[1]*x1 + q.B[2]*x2 - q.A[1]*y1 - q.A[2]*y2
		x2, x1 = x1, v
		y2, y1 = y1, y
		out[n] = y
	}
	return out
}

// FiltFilt applies the section forward and then backward so the result has
// no phase shift. The input is extended at both ends by odd reflection to
// damp start-up transients.
func (q Biquad) FiltFilt(x []float64) []float64 {
	pad := 9
	if len(x) <= pad {
		pad = len(x) - 1
	}
	if pad < 0 {
		return nil
	}
	ext := make([]float64, 0, len(x)+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	last := len(x) - 1
	for i := 1; i <= pad; i++ {
		ext = append(ext, 2*x[last]-x[last-i])
	}

	y := q.Filter(ext)
	reverse(y)
	y = q.Filter(y)
	reverse(y)
	return y[pad : pad+len(x)]
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
