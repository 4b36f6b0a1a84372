package axona

import (
	"encoding/binary"
	"fmt"

	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// Packet layout of a .bin file. Every packet carries three samples of all 64
// channels; ADU2 packets additionally carry a valid position block.
const (
	PacketSize       = 432
	NumChannels      = 64
	SamplesPerPacket = 3

	idOffset       = 0
	positionOffset = 12
	sampleOffset   = 32
	sampleStride   = 2 * NumChannels
)

var (
	idDataOnly     = [4]byte{'A', 'D', 'U', '1'}
	idWithPosition = [4]byte{'A', 'D', 'U', '2'}
)

// hardwareOrder[p] is the 0-based channel stored at packet position p.
var hardwareOrder = func() [NumChannels]int {
	var order [NumChannels]int
	blocks := []int{32, 0, 40, 8, 48, 16, 56, 24}
	for b, base := range blocks {
		for i := 0; i < 8; i++ {
			order[b*8+i] = base + i
		}
	}
	return order
}()

// packetPosition is the inverse of hardwareOrder.
var packetPosition = func() [NumChannels]int {
	var pos [NumChannels]int
	for p, ch := range hardwareOrder {
		pos[ch] = p
	}
	return pos
}()

// Position is one tracker sample: video frame number and the two LED
// coordinates with their pixel counts.
type Position struct {
	Frame    uint32
	X1       int16
	Y1       int16
	X2       int16
	Y2       int16
	NumPix1  int16
	NumPix2  int16
	TotalPix int16
	Unused   int16
}

// Values returns the fields in .pos record order, excluding the frame.
func (p Position) Values() [8]int16 {
	return [8]int16{p.X1, p.Y1, p.X2, p.Y2, p.NumPix1, p.NumPix2, p.TotalPix, p.Unused}
}

// BinInfo summarizes a .bin file.
type BinInfo struct {
	Packets   int
	Positions int
	Samples   int
}

func checkPackets(buf []byte, path string) (int, error) {
	if len(buf)%PacketSize != 0 {
		return 0, services.Wrap(services.ErrTruncated, "axona", "read bin",
			fmt.Sprintf("%s: %d bytes is not a multiple of the %d-byte packet", path, len(buf), PacketSize), nil)
	}
	n := len(buf) / PacketSize
	for i := 0; i < n; i++ {
		var id [4]byte
		copy(id[:], buf[i*PacketSize+idOffset:])
		if id != idDataOnly && id != idWithPosition {
			return 0, services.Wrap(services.ErrFormat, "axona", "read bin",
				fmt.Sprintf("%s: packet %d has id %q", path, i, id[:]), nil)
		}
	}
	return n, nil
}

// InspectBin validates the packet stream and counts its contents.
func InspectBin(path string) (BinInfo, error) {
	var info BinInfo
	err := withPackets(path, func(buf []byte, n int) error {
		info.Packets = n
		info.Samples = n * SamplesPerPacket
		for i := 0; i < n; i++ {
			if buf[i*PacketSize+3] == '2' {
				info.Positions++
			}
		}
		return nil
	})
	return info, err
}

func withPackets(path string, fn func(buf []byte, n int) error) error {
	m, err := fileutil.MapReadOnly(path)
	if err != nil {
		return services.Wrap(services.ErrMissingSource, "axona", "open bin", path, err)
	}
	defer m.Close()
	n, err := checkPackets(m.Data, path)
	if err != nil {
		return err
	}
	return fn(m.Data, n)
}

// ReadChannels returns the samples of the given 1-based channels, one series
// per requested channel.
func ReadChannels(path string, channels []int) ([][]int16, error) {
	for _, ch := range channels {
		if ch < 1 || ch > NumChannels {
			return nil, services.Wrap(services.ErrValidation, "axona", "read channels",
				fmt.Sprintf("channel %d outside 1..%d", ch, NumChannels), nil)
		}
	}
	var out [][]int16
	err := withPackets(path, func(buf []byte, n int) error {
		out = make([][]int16, len(channels))
		for i := range out {
			out[i] = make([]int16, n*SamplesPerPacket)
		}
		for pkt := 0; pkt < n; pkt++ {
			base := pkt*PacketSize + sampleOffset
			for s := 0; s < SamplesPerPacket; s++ {
				row := base + s*sampleStride
				dst := pkt*SamplesPerPacket + s
				for i, ch := range channels {
					off := row + 2*packetPosition[ch-1]
					out[i][dst] = int16(binary.LittleEndian.Uint16(buf[off:]))
				}
			}
		}
		return nil
	})
	return out, err
}

// TetrodeChannels returns the 1-based channels of tetrode n.
func TetrodeChannels(n int) []int {
	return []int{4*(n-1) + 1, 4*(n-1) + 2, 4*(n-1) + 3, 4 * n}
}

// ReadTetrode reads the four channels of tetrode n.
func ReadTetrode(path string, n int) ([][]int16, error) {
	if n < 1 || n > NumChannels/4 {
		return nil, services.Wrap(services.ErrValidation, "axona", "read tetrode",
			fmt.Sprintf("tetrode %d outside 1..%d", n, NumChannels/4), nil)
	}
	return ReadChannels(path, TetrodeChannels(n))
}

// ReadPositions returns one Position per ADU2 packet.
func ReadPositions(path string) ([]Position, error) {
	var out []Position
	err := withPackets(path, func(buf []byte, n int) error {
		for pkt := 0; pkt < n; pkt++ {
			p := buf[pkt*PacketSize:]
			if p[3] != '2' {
				continue
			}
			pos := p[positionOffset:]
			field := func(i int) int16 { return int16(binary.LittleEndian.Uint16(pos[4+2*i:])) }
			out = append(out, Position{
				Frame:    binary.LittleEndian.Uint32(pos),
				X1:       field(0),
				Y1:       field(1),
				X2:       field(2),
				Y2:       field(3),
				NumPix1:  field(4),
				NumPix2:  field(5),
				TotalPix: field(6),
				Unused:   field(7),
			})
		}
		return nil
	})
	return out, err
}
