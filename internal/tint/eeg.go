package tint

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"msconvert/internal/axona"
	"msconvert/internal/dsp"
	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

const (
	EGFRate = 4800
	EEGRate = 250

	eegTaps   = 101
	eegCutoff = 125.0
)

// LFPPaths returns the .eeg and .egf paths for EEG slot number. Slot 1 has
// no numeric suffix.
func LFPPaths(outBase string, number int) (eeg, egf string) {
	if number <= 1 {
		return outBase + ".eeg", outBase + ".egf"
	}
	return fmt.Sprintf("%s.eeg%d", outBase, number), fmt.Sprintf("%s.egf%d", outBase, number)
}

// egfStage decimates raw to EGFRate, pads with zeros to a whole number of
// seconds and zeroes the final second.
func egfStage(raw []int16, rawRate int) ([]int16, error) {
	if rawRate < EGFRate || rawRate%EGFRate != 0 {
		return nil, services.Wrap(services.ErrValidation, "tint", "lfp",
			fmt.Sprintf("raw rate %d is not a multiple of %d", rawRate, EGFRate), nil)
	}
	step := rawRate / EGFRate
	n := (len(raw) + step - 1) / step
	seconds := (n + EGFRate - 1) / EGFRate
	out := make([]int16, seconds*EGFRate)
	for i := 0; i < n; i++ {
		out[i] = raw[i*step]
	}
	clear(out[max(0, len(out)-EGFRate):])
	return out, nil
}

// EGFSignal returns the 4.8 kHz signal written to an .egf file.
func EGFSignal(raw []int16, rawRate int) ([]int16, error) {
	return egfStage(raw, rawRate)
}

// EEGSignal returns the 250 Hz int8 signal written to an .eeg file: the EGF
// stage without its final second, low-pass filtered, scaled to 8 bits and
// downsampled, followed by one second of zeros.
func EEGSignal(raw []int16, rawRate int) ([]int8, error) {
	egf, err := egfStage(raw, rawRate)
	if err != nil {
		return nil, err
	}
	egf = egf[:max(0, len(egf)-EGFRate)]

	taps, err := dsp.LowpassHann(eegTaps, eegCutoff/(EGFRate/2))
	if err != nil {
		return nil, err
	}
	x := make([]float64, len(egf))
	for i, v := range egf {
		x[i] = float64(v)
	}
	filtered := dsp.ApplyFIR(taps, x)

	scaled := make([]int8, len(filtered))
	for i, v := range filtered {
		scaled[i] = toInt8(v)
	}
	out := downsampleEEG(scaled)
	return append(out, make([]int8, EEGRate)...), nil
}

// toInt8 maps a 16-bit sample onto 8 bits, truncating toward zero.
func toInt8(v float64) int8 {
	v /= 256
	switch {
	case v > 127:
		return 127
	case v < -128:
		return -128
	}
	return int8(v)
}

// downsampleEEG takes 5 of every 96 samples (4800 Hz to 250 Hz) at offsets
// 18, 37, 56, 75 and 95 of each group.
func downsampleEEG(x []int8) []int8 {
	out := make([]int8, 0, len(x)*EEGRate/EGFRate+5)
	last := len(x) - 1
	for i := -1; i < last; i += 96 {
		for _, d := range [5]int{19, 38, 57, 76, 96} {
			if j := i + d; j <= last {
				out = append(out, x[j])
			}
		}
	}
	return out
}

// WriteEGF writes the .egf for one raw channel. set must be the converted
// set whose duration is a whole number of seconds.
func WriteEGF(path string, set *axona.Set, raw []int16) error {
	signal, err := EGFSignal(raw, set.RawRate())
	if err != nil {
		return err
	}
	duration, err := set.Int("duration")
	if err != nil {
		return err
	}
	if want := EGFRate * duration; len(signal) < want {
		signal = append(signal, make([]int16, want-len(signal))...)
	}

	var h header
	h.raw(set.Header()...)
	h.add("num_chans 1")
	h.add("sample_rate %d Hz", EGFRate)
	h.add("bytes_per_sample 2")
	h.add("num_EGF_samples %d", len(signal))
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return h.writeFile(w, func(bw *bufio.Writer) error {
			return binary.Write(bw, binary.LittleEndian, signal)
		})
	})
}

// WriteEEG writes the .eeg for one raw channel.
func WriteEEG(path string, set *axona.Set, raw []int16) error {
	signal, err := EEGSignal(raw, set.RawRate())
	if err != nil {
		return err
	}
	duration, err := set.Int("duration")
	if err != nil {
		return err
	}
	if want := EEGRate * duration; len(signal) < want {
		signal = append(signal, make([]int8, want-len(signal))...)
	}

	var h header
	h.raw(set.Header()...)
	h.add("num_chans 1")
	h.add("sample_rate %d.0 hz", EEGRate)
	h.add("EEG_samples_per_position %d", 5)
	h.add("bytes_per_sample 1")
	h.add("num_EEG_samples %d", len(signal))
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return h.writeFile(w, func(bw *bufio.Writer) error {
			return binary.Write(bw, binary.BigEndian, signal)
		})
	})
}
