package testsupport

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"msconvert/internal/rhd"
)

// rhdSamplesPerBlock is the block length of the 1.x format written here.
const rhdSamplesPerBlock = 60

// RHDFile describes a synthetic Intan recording with amplifier channels only.
type RHDFile struct {
	Rate     float32
	Channels int
	// Settings is stored as the settings filename, where recordings name
	// their probe.
	Settings       string
	Notes          [3]string
	FirstTimestamp int64
	Blocks         int
	// Amplifier returns the signed sample of 0-based channel ch at
	// file-local sample i.
	Amplifier func(ch, i int) int16
}

// Samples returns the number of samples per channel.
func (f RHDFile) Samples() int { return f.Blocks * rhdSamplesPerBlock }

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func appendQString(t testing.TB, dst []byte, s string) []byte {
	t.Helper()
	if s == "" {
		return binary.LittleEndian.AppendUint32(dst, 0xFFFFFFFF)
	}
	encoded, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode qstring: %v", err)
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(encoded)))
	return append(dst, encoded...)
}

func appendInt16(dst []byte, v int16) []byte {
	return binary.LittleEndian.AppendUint16(dst, uint16(v))
}

func appendFloat32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

// WriteRHD writes a version 1.6 file to path.
func WriteRHD(t testing.TB, path string, f RHDFile) {
	t.Helper()
	if f.Rate == 0 {
		f.Rate = 30000
	}
	b := binary.LittleEndian.AppendUint32(nil, rhd.Magic)
	b = appendInt16(b, 1)
	b = appendInt16(b, 6)
	b = appendFloat32(b, f.Rate)
	b = appendInt16(b, 1)
	for _, v := range []float32{1, 300, 6000, 1, 300, 6000} {
		b = appendFloat32(b, v)
	}
	b = appendInt16(b, 0)
	b = appendFloat32(b, 1000)
	b = appendFloat32(b, 1000)
	for _, note := range f.Notes {
		b = appendQString(t, b, note)
	}
	b = appendQString(t, b, f.Settings)
	b = appendInt16(b, 0) // temp sensors
	b = appendInt16(b, 0) // eval board mode

	b = appendInt16(b, 1)
	b = appendQString(t, b, "Port A")
	b = appendQString(t, b, "A")
	b = appendInt16(b, 1)
	b = appendInt16(b, int16(f.Channels))
	b = appendInt16(b, int16(f.Channels))
	for i := 0; i < f.Channels; i++ {
		name := fmt.Sprintf("A-%03d", i)
		b = appendQString(t, b, name)
		b = appendQString(t, b, name)
		for _, v := range []int16{int16(i), int16(i), int16(rhd.SignalAmplifier), 1, int16(i), 0, 0, 0, 0, 0} {
			b = appendInt16(b, v)
		}
		b = appendFloat32(b, 1e5)
		b = appendFloat32(b, -45)
	}

	spb := rhdSamplesPerBlock
	for blk := 0; blk < f.Blocks; blk++ {
		for s := 0; s < spb; s++ {
			b = binary.LittleEndian.AppendUint32(b, uint32(f.FirstTimestamp+int64(blk*spb+s)))
		}
		for ch := 0; ch < f.Channels; ch++ {
			for s := 0; s < spb; s++ {
				var v int16
				if f.Amplifier != nil {
					v = f.Amplifier(ch, blk*spb+s)
				}
				b = binary.LittleEndian.AppendUint16(b, uint16(int32(v)+32768))
			}
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write rhd: %v", err)
	}
}
