package tint

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// SWVersion is written to generated set files; Tint refuses files without one.
const SWVersion = "1.2.2.16"

// ConvertSet copies the set file at src to dst with the duration rounded up
// to whole seconds. Other lines, including their terminators, are kept.
func ConvertSet(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.ErrMissingSource, "tint", "convert set", src, err)
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	found := false
	for i, line := range lines {
		text := strings.TrimRight(string(line), "\r\n")
		fields := strings.Fields(text)
		if len(fields) < 2 || fields[0] != "duration" {
			continue
		}
		seconds, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return services.Wrap(services.ErrFormat, "tint", "convert set", "duration "+fields[1], err)
		}
		ending := string(line[len(text):])
		lines[i] = []byte(fmt.Sprintf("duration %d%s", int(math.Ceil(seconds)), ending))
		found = true
	}
	if !found {
		return services.Wrap(services.ErrFormat, "tint", "convert set", src+": no duration line", nil)
	}
	return fileutil.WriteFileAtomic(dst, bytes.Join(lines, nil))
}

// IntanSet describes the set file generated for an Intan session, which has
// no acquisition-side set of its own.
type IntanSet struct {
	Start        time.Time
	Experimenter string
	Samples      int
	RawRate      int
	Tetrodes     []int
}

// Duration returns the session length rounded up to whole seconds.
func (s IntanSet) Duration() int {
	if s.RawRate <= 0 {
		return 0
	}
	return int(math.Ceil(float64(s.Samples) / float64(s.RawRate)))
}

// WriteIntanSet writes s to path in set-file form.
func WriteIntanSet(path string, s IntanSet) error {
	if s.RawRate <= 0 {
		return services.Wrap(services.ErrValidation, "tint", "write set", "sample rate must be positive", nil)
	}
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		var b strings.Builder
		line := func(format string, args ...any) {
			fmt.Fprintf(&b, format, args...)
			b.WriteString(lineEnd)
		}
		line("trial_date %s", s.Start.Format("Monday, 02 Jan 2006"))
		line("trial_time %s", s.Start.Format("15:04:05"))
		line("experimenter %s", s.Experimenter)
		line("comments ")
		line("duration %d", s.Duration())
		line("sw_version %s", SWVersion)
		line("rawRate %d", s.RawRate)
		for _, n := range s.Tetrodes {
			line("collectMask_%d 1", n)
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}
