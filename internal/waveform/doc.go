// Package waveform rebuilds a continuous pseudo-signal from discontiguous
// spike snippets so tools expecting continuous data can consume exported
// spikes. Gaps are filled with zeros, a linear ramp between neighbouring
// snippets, or a low-amplitude sinusoid kept below the detection threshold.
package waveform
