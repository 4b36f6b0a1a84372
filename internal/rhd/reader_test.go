package rhd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msconvert/internal/services"
)

func digitalFixture(major, minor int16) fixture {
	f := newFixture(major, minor)
	f.evalMode = 1
	f.groups = [][]fixtureChannel{
		amplifierGroup(2),
		{
			{name: "ADC-00", typ: SignalBoardADC, enabled: true},
		},
		{
			{name: "DIN-00", typ: SignalDigitalIn, order: 0, enabled: true},
			{name: "DIN-03", typ: SignalDigitalIn, order: 3, enabled: true},
		},
	}
	return f
}

func TestReadFileDecodesAmplifierAndDigital(t *testing.T) {
	dir := t.TempDir()
	src := blockSource{
		amplifier: func(ch, s int) uint16 { return uint16(32768 + ch*1000 + s - 50) },
		adc:       func(_, s int) uint16 { return uint16(s) },
		digital:   func(s int) uint16 { return uint16(s % 16) },
	}
	path, h := writeFile(t, dir, "rat_230101_120000.rhd", digitalFixture(1, 5), src, 2)

	data, err := ReadFile(path, ReadOptions{ADC: true, Digital: true})
	require.NoError(t, err)
	spb := h.SamplesPerBlock()
	require.Equal(t, 2*spb, data.NumSamples())
	assert.Equal(t, []int{1, 2}, data.Channels)

	for s := 0; s < data.NumSamples(); s++ {
		assert.Equal(t, int16(s-50), data.Amplifier[0][s])
		assert.Equal(t, int16(1000+s-50), data.Amplifier[1][s])
		assert.Equal(t, uint16(s), data.BoardADC[0][s])
		assert.Equal(t, uint8(s&1), data.DigitalIn[0][s])
		assert.Equal(t, uint8((s>>3)&1), data.DigitalIn[1][s])
		assert.Equal(t, int64(s), data.Timestamps[s])
	}
}

func TestReadFileSelectsChannels(t *testing.T) {
	dir := t.TempDir()
	src := blockSource{amplifier: func(ch, s int) uint16 { return uint16(32768 + ch) }}
	path, _ := writeFile(t, dir, "rat_230101_120000.rhd", digitalFixture(2, 0), src, 1)

	data, err := ReadFile(path, ReadOptions{Channels: []int{2}})
	require.NoError(t, err)
	require.Len(t, data.Amplifier, 1)
	assert.Equal(t, int16(1), data.Amplifier[0][0])
	assert.Nil(t, data.DigitalIn)
	assert.Nil(t, data.BoardADC)

	_, err = ReadFile(path, ReadOptions{Channels: []int{3}})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestDecodeSubtractsOffsetRatherThanReinterpreting(t *testing.T) {
	f := newFixture(1, 5)
	f.groups = [][]fixtureChannel{amplifierGroup(1)}
	head := f.header()
	h, err := ParseHeader(head)
	require.NoError(t, err)
	values := map[int]uint16{0: 0, 1: 65535, 2: 32768}
	src := blockSource{amplifier: func(_, s int) uint16 {
		if v, ok := values[s]; ok {
			return v
		}
		return 32768
	}}
	data, err := Decode(append(head, src.blocks(h, 1)...), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int16(-32768), data.Amplifier[0][0])
	assert.Equal(t, int16(32767), data.Amplifier[0][1])
	assert.Equal(t, int16(0), data.Amplifier[0][2])
}

func TestTimestampSignednessFollowsVersion(t *testing.T) {
	for _, tc := range []struct {
		major, minor int16
		want         int64
	}{
		{1, 0, 4294967291},
		{1, 2, -5},
	} {
		f := newFixture(tc.major, tc.minor)
		f.groups = [][]fixtureChannel{amplifierGroup(1)}
		head := f.header()
		h, err := ParseHeader(head)
		require.NoError(t, err)
		info, err := inspect(append(head, blockSource{firstTimestamp: -5}.blocks(h, 1)...))
		require.NoError(t, err)
		assert.Equal(t, tc.want, info.FirstTimestamp, "version %d.%d", tc.major, tc.minor)
	}
}

func TestReadFileRejectsPartialBlock(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeFile(t, dir, "rat_230101_120000.rhd", digitalFixture(1, 5), blockSource{}, 2)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = ReadFile(path, ReadOptions{})
	assert.ErrorIs(t, err, services.ErrTruncated)
	assert.True(t, services.IsCodecError(err))

	_, err = Inspect(path)
	assert.ErrorIs(t, err, services.ErrTruncated)
}

func TestInspectReportsDuration(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeFile(t, dir, "rat_230101_120000.rhd", digitalFixture(2, 0), blockSource{firstTimestamp: 256}, 3)
	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Blocks)
	assert.Equal(t, 384, info.Samples)
	assert.Equal(t, int64(256), info.FirstTimestamp)
	assert.Equal(t, int64(256+383), info.LastTimestamp)
	assert.InDelta(t, 384.0/30000.0, info.Duration(), 1e-9)
}

func TestNegateClamp(t *testing.T) {
	assert.Equal(t, int16(32767), NegateClamp(-32768))
	assert.Equal(t, int16(-32767), NegateClamp(32767))
	assert.Equal(t, int16(0), NegateClamp(0))
}
