package rhd

import (
	"encoding/binary"
	"fmt"
	"math"

	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// ReadOptions selects which channel groups to copy out of the data blocks.
type ReadOptions struct {
	// Channels lists 1-based amplifier channel numbers. Nil reads every
	// amplifier channel; an empty non-nil slice reads none.
	Channels []int
	ADC      bool
	Digital  bool
}

// Data is the decoded content of one file or a concatenated session.
// Timestamps are the file-local sample numbers as stored; they restart at the
// beginning of every recording and are not rebased on concatenation.
type Data struct {
	Header     *Header
	Timestamps []int64
	Channels   []int
	Amplifier  [][]int16
	BoardADC   [][]uint16
	DigitalIn  [][]uint8
	DigitalRaw []uint16
}

// NumSamples returns the number of amplifier-rate samples.
func (d *Data) NumSamples() int {
	return len(d.Timestamps)
}

// FileInfo summarizes a file without decoding its samples.
type FileInfo struct {
	Path           string
	Header         *Header
	Blocks         int
	Samples        int
	FirstTimestamp int64
	LastTimestamp  int64
}

// Duration returns the recording length in seconds.
func (i *FileInfo) Duration() float64 {
	if i.Header == nil || i.Header.SampleRate == 0 {
		return 0
	}
	return float64(i.Samples) / float64(i.Header.SampleRate)
}

// blockCount validates the data section length and returns the number of blocks.
func blockCount(buf []byte, h *Header) (int, error) {
	g := h.Geometry()
	bpb := g.BytesPerBlock()
	remaining := len(buf) - h.Length
	if remaining < 0 {
		return 0, services.Wrap(services.ErrTruncated, "rhd", "read data", "file shorter than header", nil)
	}
	if remaining%bpb != 0 {
		return 0, services.Wrap(services.ErrTruncated, "rhd", "read data",
			fmt.Sprintf("%d data bytes is not a multiple of the %d-byte block", remaining, bpb), nil)
	}
	return remaining / bpb, nil
}

func readTimestamp(buf []byte, off int, signed bool) int64 {
	raw := binary.LittleEndian.Uint32(buf[off:])
	if signed {
		return int64(int32(raw))
	}
	return int64(raw)
}

// Inspect parses the header of path and the first and last timestamps.
func Inspect(path string) (*FileInfo, error) {
	m, err := fileutil.MapReadOnly(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "rhd", "open", path, err)
	}
	defer m.Close()
	info, err := inspect(m.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	info.Path = path
	return info, nil
}

func inspect(buf []byte) (*FileInfo, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	blocks, err := blockCount(buf, h)
	if err != nil {
		return nil, err
	}
	g := h.Geometry()
	info := &FileInfo{Header: h, Blocks: blocks, Samples: blocks * g.SamplesPerBlock}
	if blocks > 0 {
		bpb := g.BytesPerBlock()
		info.FirstTimestamp = readTimestamp(buf, h.Length, g.SignedTimestamp)
		last := h.Length + (blocks-1)*bpb + 4*(g.SamplesPerBlock-1)
		info.LastTimestamp = readTimestamp(buf, last, g.SignedTimestamp)
	}
	return info, nil
}

// ReadFile maps path read-only, decodes the selected channel groups, and
// releases the mapping before returning.
func ReadFile(path string, opts ReadOptions) (*Data, error) {
	m, err := fileutil.MapReadOnly(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "rhd", "open", path, err)
	}
	defer m.Close()
	data, err := Decode(m.Data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Decode parses a complete file image.
func Decode(buf []byte, opts ReadOptions) (*Data, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	blocks, err := blockCount(buf, h)
	if err != nil {
		return nil, err
	}

	channels, err := resolveChannels(opts.Channels, len(h.Amplifier))
	if err != nil {
		return nil, err
	}

	g := h.Geometry()
	spb := g.SamplesPerBlock
	bpb := g.BytesPerBlock()
	n := blocks * spb
	data := &Data{Header: h, Channels: channels, Timestamps: make([]int64, n)}

	data.Amplifier = make([][]int16, len(channels))
	for i := range data.Amplifier {
		data.Amplifier[i] = make([]int16, n)
	}
	if opts.ADC {
		data.BoardADC = make([][]uint16, g.BoardADC)
		for i := range data.BoardADC {
			data.BoardADC[i] = make([]uint16, n)
		}
	}
	readDigital := opts.Digital && g.DigitalIn > 0
	if readDigital {
		data.DigitalRaw = make([]uint16, n)
		data.DigitalIn = make([][]uint8, g.DigitalIn)
		for i := range data.DigitalIn {
			data.DigitalIn[i] = make([]uint8, n)
		}
	}

	for b := 0; b < blocks; b++ {
		base := h.Length + b*bpb
		dst := b * spb
		for s := 0; s < spb; s++ {
			data.Timestamps[dst+s] = readTimestamp(buf, base+g.timestampOffset()+4*s, g.SignedTimestamp)
		}
		for i, ch := range channels {
			off := base + g.amplifierOffset() + 2*spb*(ch-1)
			out := data.Amplifier[i][dst : dst+spb]
			for s := range out {
				out[s] = int16(int32(binary.LittleEndian.Uint16(buf[off+2*s:])) - 32768)
			}
		}
		if opts.ADC {
			for c := range data.BoardADC {
				off := base + g.adcOffset() + 2*spb*c
				out := data.BoardADC[c][dst : dst+spb]
				for s := range out {
					out[s] = binary.LittleEndian.Uint16(buf[off+2*s:])
				}
			}
		}
		if readDigital {
			off := base + g.digitalInOffset()
			for s := 0; s < spb; s++ {
				data.DigitalRaw[dst+s] = binary.LittleEndian.Uint16(buf[off+2*s:])
			}
		}
	}

	if readDigital {
		for c, ch := range h.DigitalIn {
			shift := uint(ch.NativeOrder) & 15
			bits := data.DigitalIn[c]
			for i, raw := range data.DigitalRaw {
				bits[i] = uint8((raw >> shift) & 1)
			}
		}
	}
	return data, nil
}

func resolveChannels(requested []int, available int) ([]int, error) {
	if requested == nil {
		all := make([]int, available)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}
	out := make([]int, len(requested))
	for i, ch := range requested {
		if ch < 1 || ch > available {
			return nil, services.Wrap(services.ErrValidation, "rhd", "select channels",
				fmt.Sprintf("channel %d outside 1..%d", ch, available), nil)
		}
		out[i] = ch
	}
	return out, nil
}

// AnalogScale returns volts per ADC bit for the board's eval mode.
func AnalogScale(evalBoardMode int) float64 {
	switch evalBoardMode {
	case 1:
		return 152.59e-6
	case 13:
		return 312.5e-6
	default:
		return 50.354e-6
	}
}

// NegateClamp returns -x saturated to the int16 range. Used when converting
// amplifier data to the polarity the sorter expects.
func NegateClamp(x int16) int16 {
	if x == math.MinInt16 {
		return math.MaxInt16
	}
	return -x
}
