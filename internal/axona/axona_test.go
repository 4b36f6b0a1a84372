package axona

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msconvert/internal/services"
)

// packet builds one packet whose sample for 0-based channel ch at slot s is
// value(ch, s).
func packet(withPos bool, number uint32, value func(ch, s int) int16, pos Position) []byte {
	p := make([]byte, PacketSize)
	copy(p, "ADU1")
	if withPos {
		copy(p, "ADU2")
		binary.LittleEndian.PutUint32(p[positionOffset:], pos.Frame)
		for i, v := range pos.Values() {
			binary.LittleEndian.PutUint16(p[positionOffset+4+2*i:], uint16(v))
		}
	}
	binary.LittleEndian.PutUint32(p[4:], number)
	for s := 0; s < SamplesPerPacket; s++ {
		for pos, ch := range hardwareOrder {
			off := sampleOffset + s*sampleStride + 2*pos
			binary.LittleEndian.PutUint16(p[off:], uint16(value(ch, s)))
		}
	}
	return p
}

func writeBin(t *testing.T, packets ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rat.bin")
	var buf []byte
	for _, p := range packets {
		buf = append(buf, p...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestHardwareOrderIsPermutation(t *testing.T) {
	seen := map[int]bool{}
	for _, ch := range hardwareOrder {
		assert.False(t, seen[ch])
		seen[ch] = true
	}
	assert.Len(t, seen, NumChannels)
	assert.Equal(t, 32, hardwareOrder[0])
	assert.Equal(t, 0, hardwareOrder[8])
	assert.Equal(t, 31, hardwareOrder[63])
}

func TestReadTetrodeDemultiplexes(t *testing.T) {
	value := func(ch, s int) int16 { return int16(ch*10 - s) }
	path := writeBin(t,
		packet(false, 0, value, Position{}),
		packet(true, 1, func(ch, s int) int16 { return value(ch, s) - 100 }, Position{Frame: 7, X1: 100, Y1: 200}),
	)

	data, err := ReadTetrode(path, 2)
	require.NoError(t, err)
	require.Len(t, data, 4)
	// Tetrode 2 is 1-based channels 5..8, i.e. 0-based 4..7.
	assert.Equal(t, []int16{40, 39, 38, -60, -61, -62}, data[0])
	assert.Equal(t, []int16{70, 69, 68, -30, -31, -32}, data[3])

	positions, err := ReadPositions(path)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, uint32(7), positions[0].Frame)
	assert.Equal(t, int16(200), positions[0].Y1)

	info, err := InspectBin(path)
	require.NoError(t, err)
	assert.Equal(t, BinInfo{Packets: 2, Positions: 1, Samples: 6}, info)

	_, err = ReadTetrode(path, 17)
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = ReadChannels(path, []int{0})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestReadBinRejectsCorruptFiles(t *testing.T) {
	zero := func(int, int) int16 { return 0 }
	good := packet(false, 0, zero, Position{})

	truncated := writeBin(t, good, good[:100])
	_, err := ReadChannels(truncated, []int{1})
	assert.ErrorIs(t, err, services.ErrTruncated)

	bad := append([]byte(nil), good...)
	copy(bad, "XXXX")
	corrupt := writeBin(t, good, bad)
	_, err = ReadPositions(corrupt)
	assert.ErrorIs(t, err, services.ErrFormat)

	_, err = InspectBin(filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, services.ErrMissingSource)
}

const sampleSet = "trial_date Tuesday, 14 Feb 2023\r\n" +
	"trial_time 10:11:12\r\n" +
	"experimenter Geoff\r\n" +
	"comments \r\n" +
	"duration 600.4\r\n" +
	"sw_version 1.2.2.16\r\n" +
	"rawRate 48000\r\n" +
	"collectMask_1 1\r\n" +
	"collectMask_2 0\r\n" +
	"collectMask_10 1\r\n" +
	"collectMask_3 1\r\n" +
	"saveEEG_ch_1 1\r\n" +
	"EEG_ch_1 5\r\n" +
	"saveEEG_ch_2 0\r\n" +
	"EEG_ch_2 9\r\n" +
	"saveEEG_ch_3 1\r\n" +
	"EEG_ch_3 12\r\n"

func TestParseSet(t *testing.T) {
	s, err := ParseSet(strings.NewReader(sampleSet))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 10}, s.ActiveTetrodes())
	assert.Equal(t, []EEGChannel{{Number: 1, Channel: 5}, {Number: 3, Channel: 12}}, s.ActiveEEG())
	assert.Equal(t, 48000, s.RawRate())
	assert.Equal(t, "Tuesday, 14 Feb 2023", s.String("trial_date"))
	assert.Equal(t, "", s.String("comments"))

	d, err := s.Duration()
	require.NoError(t, err)
	assert.InDelta(t, 600.4, d, 1e-9)

	header := s.Header()
	require.Len(t, header, 6)
	assert.Equal(t, "sw_version 1.2.2.16", header[5])

	_, err = s.Float("xmin")
	assert.ErrorIs(t, err, services.ErrFormat)
}

func TestRawRateDefault(t *testing.T) {
	s, err := ParseSet(strings.NewReader("duration 10\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRawRate, s.RawRate())
}
