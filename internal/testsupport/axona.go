package testsupport

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	binPacketSize  = 432
	binChannels    = 64
	binSamples     = 3
	binPosOffset   = 12
	binDataOffset  = 32
	binSampleBytes = 2 * binChannels
)

// binOrder[p] is the 0-based channel stored at packet position p.
var binOrder = func() [binChannels]int {
	var order [binChannels]int
	for b, base := range []int{32, 0, 40, 8, 48, 16, 56, 24} {
		for i := 0; i < 8; i++ {
			order[b*8+i] = base + i
		}
	}
	return order
}()

// BinSession describes a synthetic Axona recording.
type BinSession struct {
	Name     string
	RawRate  int
	Tetrodes []int
	// EEG maps an EEG slot to the 1-based channel it records.
	EEG map[int]int
	// Packets is the number of 432-byte packets; every packet holds three
	// samples.
	Packets int
	// PositionEvery marks every n-th packet as carrying a position; 0 means
	// none.
	PositionEvery int
	// Signal returns the sample of 1-based channel ch at sample index i.
	Signal func(ch, i int) int16
}

// Samples returns the number of samples per channel.
func (s BinSession) Samples() int { return s.Packets * binSamples }

// WriteBinSession writes <dir>/<name>.bin and .set and returns their paths.
func WriteBinSession(t testing.TB, dir string, s BinSession) (binPath, setPath string) {
	t.Helper()
	if s.RawRate == 0 {
		s.RawRate = 48000
	}
	base := filepath.Join(dir, s.Name)
	binPath, setPath = base+".bin", base+".set"

	buf := make([]byte, 0, s.Packets*binPacketSize)
	for n := 0; n < s.Packets; n++ {
		p := make([]byte, binPacketSize)
		copy(p, "ADU1")
		if s.PositionEvery > 0 && n%s.PositionEvery == 0 {
			copy(p, "ADU2")
			binary.LittleEndian.PutUint32(p[binPosOffset:], uint32(n/s.PositionEvery))
			for i := 0; i < 8; i++ {
				binary.LittleEndian.PutUint16(p[binPosOffset+4+2*i:], uint16(10*i+n%7))
			}
		}
		binary.LittleEndian.PutUint32(p[4:], uint32(n))
		if s.Signal != nil {
			for k := 0; k < binSamples; k++ {
				for pos, ch := range binOrder {
					v := s.Signal(ch+1, n*binSamples+k)
					binary.LittleEndian.PutUint16(p[binDataOffset+k*binSampleBytes+2*pos:], uint16(v))
				}
			}
		}
		buf = append(buf, p...)
	}
	if err := os.WriteFile(binPath, buf, 0o644); err != nil {
		t.Fatalf("write bin: %v", err)
	}

	duration := float64(s.Samples()) / float64(s.RawRate)
	lines := []string{
		"trial_date Tuesday, 14 Mar 2023",
		"trial_time 10:15:00",
		"experimenter tester",
		"comments synthetic",
		fmt.Sprintf("duration %g", duration),
		"sw_version 1.2.2.16",
		"ADC_fullscale_mv 1500",
		"tracker_version 0",
		"stim_version 1",
		"audio_version 0",
		fmt.Sprintf("rawRate %d", s.RawRate),
		"xmin 10",
		"xmax 700",
		"ymin 20",
		"ymax 550",
		"tracker_pixels_per_metre 600",
	}
	for _, n := range s.Tetrodes {
		lines = append(lines, fmt.Sprintf("collectMask_%d 1", n))
	}
	for slot, ch := range s.EEG {
		lines = append(lines, fmt.Sprintf("saveEEG_ch_%d 1", slot), fmt.Sprintf("EEG_ch_%d %d", slot, ch))
	}
	if err := os.WriteFile(setPath, []byte(strings.Join(lines, "\r\n")+"\r\n"), 0o644); err != nil {
		t.Fatalf("write set: %v", err)
	}
	return binPath, setPath
}
