// Package dsp holds the small set of digital filters the conversion and
// export stages need: a windowed-sinc FIR low-pass applied causally, and a
// second-order IIR notch applied forward and backward for zero phase.
package dsp
