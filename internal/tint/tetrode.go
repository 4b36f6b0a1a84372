package tint

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"msconvert/internal/axona"
	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// Tetrode spike file geometry.
const (
	Timebase        = 96000
	SamplesPerSpike = 50
	PreSpike        = 11
	PostSpike       = 39
	TetrodeChannels = 4

	// SpikeRecordSize is the body size of one spike: per channel a 4-byte
	// timestamp then the waveform bytes.
	SpikeRecordSize = TetrodeChannels * (4 + SamplesPerSpike)
)

// Waveform is one spike's samples on each tetrode channel, 8-bit scaled.
type Waveform [TetrodeChannels][SamplesPerSpike]int8

// TetrodeHeader carries the set fields repeated in every tetrode file.
type TetrodeHeader struct {
	TrialDate    string
	TrialTime    string
	Experimenter string
	Comments     string
	Duration     int
	SWVersion    string
	RawRate      int
}

// TetrodeHeaderFromSet reads the header fields from a converted set file.
func TetrodeHeaderFromSet(set *axona.Set) (TetrodeHeader, error) {
	duration, err := set.Int("duration")
	if err != nil {
		return TetrodeHeader{}, err
	}
	return TetrodeHeader{
		TrialDate:    set.String("trial_date"),
		TrialTime:    set.String("trial_time"),
		Experimenter: set.String("experimenter"),
		Comments:     set.String("comments"),
		Duration:     duration,
		SWVersion:    set.String("sw_version"),
		RawRate:      set.RawRate(),
	}, nil
}

// ToTimebase converts a sample index to Tint's 96 kHz timestamp. Samples
// whose timestamp does not fit the file's 32-bit field are rejected.
func ToTimebase(sample int64, rawRate int) (int32, error) {
	if rawRate <= 0 {
		return 0, services.Wrap(services.ErrValidation, "tint", "timebase", "sample rate must be positive", nil)
	}
	ts := sample * Timebase / int64(rawRate)
	if sample < 0 || ts > math.MaxInt32 {
		return 0, services.Wrap(services.ErrValidation, "tint", "timebase",
			fmt.Sprintf("sample %d at %d Hz does not fit a 32-bit %d Hz timestamp", sample, rawRate, Timebase), nil)
	}
	return int32(ts), nil
}

// FromTimebase converts a 96 kHz timestamp back to the nearest sample index.
func FromTimebase(ts int32, rawRate int) int64 {
	return int64(math.Round(float64(ts) * float64(rawRate) / Timebase))
}

// ClipBounds reports whether a spike at sample t has a full clip window in a
// recording of n samples.
func ClipBounds(t int64, n int) bool {
	return t-PreSpike >= 0 && t+PostSpike < int64(n-1)
}

// ExtractWaveforms cuts a clip around every spike time whose window fits in
// data. It returns the indices into times that were kept and their
// waveforms. data holds the four tetrode channels.
func ExtractWaveforms(data [][]int16, times []int64) ([]int, []Waveform, error) {
	if len(data) != TetrodeChannels {
		return nil, nil, services.Wrap(services.ErrValidation, "tint", "extract waveforms",
			fmt.Sprintf("need %d channels, got %d", TetrodeChannels, len(data)), nil)
	}
	n := len(data[0])
	var kept []int
	var waves []Waveform
	for i, t := range times {
		if !ClipBounds(t, n) {
			continue
		}
		var w Waveform
		for ch := range data {
			clip := data[ch][t-PreSpike : t+PostSpike]
			for k, v := range clip {
				w[ch][k] = int8(v / 256)
			}
		}
		kept = append(kept, i)
		waves = append(waves, w)
	}
	return kept, waves, nil
}

// WriteTetrode writes spikes at the given sample indices to path.
func WriteTetrode(path string, h TetrodeHeader, samples []int64, waves []Waveform) error {
	if len(samples) != len(waves) {
		return services.Wrap(services.ErrValidation, "tint", "write tetrode",
			fmt.Sprintf("%d times for %d waveforms", len(samples), len(waves)), nil)
	}
	if h.RawRate <= 0 {
		return services.Wrap(services.ErrValidation, "tint", "write tetrode", "sample rate must be positive", nil)
	}

	stamps := make([]uint32, len(samples))
	for i, t := range samples {
		ts, err := ToTimebase(t, h.RawRate)
		if err != nil {
			return err
		}
		stamps[i] = uint32(ts)
	}

	var hdr header
	hdr.add("trial_date %s", h.TrialDate)
	hdr.add("trial_time %s", h.TrialTime)
	hdr.add("experimenter %s", h.Experimenter)
	hdr.add("comments %s", h.Comments)
	hdr.add("duration %d", h.Duration)
	hdr.add("sw_version %s", h.SWVersion)
	hdr.add("num_chans %d", TetrodeChannels)
	hdr.add("timebase %d hz", Timebase)
	hdr.add("bytes_per_timestamp %d", 4)
	hdr.add("samples_per_spike %d", SamplesPerSpike)
	hdr.add("sample_rate %d hz", h.RawRate)
	hdr.add("bytes_per_sample %d", 1)
	hdr.add("spike_format t,ch1,t,ch2,t,ch3,t,ch4")
	hdr.add("num_spikes %d", len(samples))

	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return hdr.writeFile(w, func(bw *bufio.Writer) error {
			var rec [SpikeRecordSize]byte
			for i, ts := range stamps {
				for ch := 0; ch < TetrodeChannels; ch++ {
					off := ch * (4 + SamplesPerSpike)
					binary.BigEndian.PutUint32(rec[off:], ts)
					for k, v := range waves[i][ch] {
						rec[off+4+k] = byte(v)
					}
				}
				if _, err := bw.Write(rec[:]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// TetrodeFile is a decoded tetrode spike file.
type TetrodeFile struct {
	Header     map[string]string
	RawRate    int
	Timestamps []int32
	Waveforms  []Waveform
}

// Samples converts the timestamps back to sample indices.
func (f *TetrodeFile) Samples() []int64 {
	out := make([]int64, len(f.Timestamps))
	for i, ts := range f.Timestamps {
		out[i] = FromTimebase(ts, f.RawRate)
	}
	return out
}

// ReadTetrode decodes the tetrode file at path.
func ReadTetrode(path string) (*TetrodeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMissingSource, "tint", "read tetrode", path, err)
	}
	parsed, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if parsed.kind != kindTetrode {
		return nil, services.Wrap(services.ErrFormat, "tint", "read tetrode", path+": not a tetrode file", nil)
	}
	rate, err := headerInt(parsed.fields, "sample_rate")
	if err != nil || rate <= 0 {
		return nil, services.Wrap(services.ErrFormat, "tint", "read tetrode", path+": sample_rate", err)
	}

	f := &TetrodeFile{
		Header:     parsed.fields,
		RawRate:    rate,
		Timestamps: make([]int32, parsed.count),
		Waveforms:  make([]Waveform, parsed.count),
	}
	for i := 0; i < parsed.count; i++ {
		rec := parsed.body[i*SpikeRecordSize:]
		f.Timestamps[i] = int32(binary.BigEndian.Uint32(rec))
		for ch := 0; ch < TetrodeChannels; ch++ {
			off := ch*(4+SamplesPerSpike) + 4
			for k := 0; k < SamplesPerSpike; k++ {
				f.Waveforms[i][ch][k] = int8(rec[off+k])
			}
		}
	}
	return f, nil
}
