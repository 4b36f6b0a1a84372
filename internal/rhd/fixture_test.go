package rhd

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

type fixtureChannel struct {
	name    string
	typ     SignalType
	order   int16
	enabled bool
}

type fixture struct {
	version   Version
	rate      float32
	notch     int16
	notes     [3]string
	settings  string
	temp      int16
	evalMode  int16
	reference string
	groups    [][]fixtureChannel
}

func newFixture(major, minor int16) fixture {
	return fixture{version: Version{major, minor}, rate: 30000, notch: 2}
}

func appendQString(dst []byte, s string) []byte {
	if s == "" {
		return binary.LittleEndian.AppendUint32(dst, qstringEmpty)
	}
	encoded, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
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

func (f fixture) header() []byte {
	b := binary.LittleEndian.AppendUint32(nil, Magic)
	b = appendInt16(b, f.version.Major)
	b = appendInt16(b, f.version.Minor)
	b = appendFloat32(b, f.rate)
	b = appendInt16(b, 1)
	for _, v := range []float32{1, 300, 6000, 1, 300, 6000} {
		b = appendFloat32(b, v)
	}
	b = appendInt16(b, f.notch)
	b = appendFloat32(b, 1000)
	b = appendFloat32(b, 1000)
	for _, note := range f.notes {
		b = appendQString(b, note)
	}
	if f.version.AtLeast(1, 6) {
		b = appendQString(b, f.settings)
	}
	if f.version.AtLeast(1, 1) {
		b = appendInt16(b, f.temp)
	}
	if f.version.AtLeast(1, 3) {
		b = appendInt16(b, f.evalMode)
	}
	if f.version.AtLeast(2, 0) {
		b = appendQString(b, f.reference)
	}
	b = appendInt16(b, int16(len(f.groups)))
	for gi, group := range f.groups {
		b = appendQString(b, "Port")
		b = appendQString(b, string(rune('A'+gi)))
		b = appendInt16(b, 1)
		b = appendInt16(b, int16(len(group)))
		b = appendInt16(b, 0)
		for i, ch := range group {
			b = appendQString(b, ch.name)
			b = appendQString(b, ch.name)
			enabled := int16(0)
			if ch.enabled {
				enabled = 1
			}
			for _, v := range []int16{ch.order, int16(i), int16(ch.typ), enabled, int16(i), 0, 0, 0, 0, 0} {
				b = appendInt16(b, v)
			}
			b = appendFloat32(b, 1e5)
			b = appendFloat32(b, -45)
		}
	}
	return b
}

// amplifierGroup builds n enabled amplifier channels named A-000...
func amplifierGroup(n int) []fixtureChannel {
	out := make([]fixtureChannel, n)
	for i := range out {
		out[i] = fixtureChannel{name: fmt.Sprintf("A-%03d", i), typ: SignalAmplifier, order: int16(i), enabled: true}
	}
	return out
}

type blockSource struct {
	firstTimestamp int64
	amplifier      func(ch, sample int) uint16
	adc            func(ch, sample int) uint16
	digital        func(sample int) uint16
}

// blocks encodes n data blocks for the geometry of h. Sample indices passed to
// the callbacks are file-local.
func (src blockSource) blocks(h *Header, n int) []byte {
	g := h.Geometry()
	spb := g.SamplesPerBlock
	out := make([]byte, 0, n*g.BytesPerBlock())
	for b := 0; b < n; b++ {
		block := make([]byte, g.BytesPerBlock())
		for s := 0; s < spb; s++ {
			binary.LittleEndian.PutUint32(block[g.timestampOffset()+4*s:], uint32(src.firstTimestamp+int64(b*spb+s)))
		}
		for c := 0; c < g.Amplifier; c++ {
			for s := 0; s < spb; s++ {
				v := uint16(32768)
				if src.amplifier != nil {
					v = src.amplifier(c, b*spb+s)
				}
				binary.LittleEndian.PutUint16(block[g.amplifierOffset()+2*(c*spb+s):], v)
			}
		}
		for c := 0; c < g.BoardADC; c++ {
			for s := 0; s < spb; s++ {
				if src.adc != nil {
					binary.LittleEndian.PutUint16(block[g.adcOffset()+2*(c*spb+s):], src.adc(c, b*spb+s))
				}
			}
		}
		if g.DigitalIn > 0 && src.digital != nil {
			for s := 0; s < spb; s++ {
				binary.LittleEndian.PutUint16(block[g.digitalInOffset()+2*s:], src.digital(b*spb+s))
			}
		}
		out = append(out, block...)
	}
	return out
}

// writeFile builds a complete file image and writes it under dir.
func writeFile(t *testing.T, dir, name string, f fixture, src blockSource, blocks int) (string, *Header) {
	t.Helper()
	head := f.header()
	h, err := ParseHeader(head)
	if err != nil {
		t.Fatalf("parse fixture header: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(head, src.blocks(h, blocks)...), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path, h
}
