package axona

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"msconvert/internal/services"
)

// DefaultRawRate applies when a set file has no rawRate entry.
const DefaultRawRate = 48000

// Set is a parsed .set file. Lines keep their original order so headers can
// be reproduced; lookups go through the key index.
type Set struct {
	Lines  []string
	values map[string]string
}

// ParseSet reads "key value..." lines. The value is everything after the
// first run of whitespace; a bare key has an empty value. The first
// occurrence of a key wins.
func ParseSet(r io.Reader) (*Set, error) {
	s := &Set{values: map[string]string{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		s.Lines = append(s.Lines, line)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		key, value, _ := strings.Cut(trimmed, " ")
		if _, seen := s.values[key]; !seen {
			s.values[key] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadSet parses the set file at path.
func ReadSet(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMissingSource, "axona", "read set", path, err)
	}
	defer f.Close()
	s, err := ParseSet(f)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "axona", "read set", path, err)
	}
	return s, nil
}

// Get returns the raw value of key.
func (s *Set) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value of key or "".
func (s *Set) String(key string) string {
	return s.values[key]
}

// Float parses the value of key as a number.
func (s *Set) Float(key string) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, services.Wrap(services.ErrFormat, "axona", "set value", fmt.Sprintf("missing %s", key), nil)
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, services.Wrap(services.ErrFormat, "axona", "set value", fmt.Sprintf("empty %s", key), nil)
	}
	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, services.Wrap(services.ErrFormat, "axona", "set value", key, err)
	}
	return f, nil
}

// Int parses the value of key, truncating any fractional part.
func (s *Set) Int(key string) (int, error) {
	f, err := s.Float(key)
	return int(f), err
}

// RawRate returns rawRate in Hz.
func (s *Set) RawRate() int {
	if rate, err := s.Int("rawRate"); err == nil && rate > 0 {
		return rate
	}
	return DefaultRawRate
}

// Duration returns the recording length in seconds as written.
func (s *Set) Duration() (float64, error) {
	return s.Float("duration")
}

// ActiveTetrodes lists the tetrodes with collectMask_N set to 1.
func (s *Set) ActiveTetrodes() []int {
	return s.flagged("collectMask_")
}

// EEGChannel pairs an EEG slot number with the 1-based channel it records.
type EEGChannel struct {
	Number  int
	Channel int
}

// ActiveEEG lists the EEG slots with saveEEG_ch_N set, ordered by slot.
func (s *Set) ActiveEEG() []EEGChannel {
	var out []EEGChannel
	for _, n := range s.flagged("saveEEG_ch_") {
		ch, err := s.Int(fmt.Sprintf("EEG_ch_%d", n))
		if err != nil || ch < 1 {
			continue
		}
		out = append(out, EEGChannel{Number: n, Channel: ch})
	}
	return out
}

func (s *Set) flagged(prefix string) []int {
	var out []int
	for key, value := range s.values {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil && f == 1 {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// Header returns the lines up to and including the first one that mentions
// sw_version. Tint files repeat this block at the top of their own headers.
func (s *Set) Header() []string {
	for i, line := range s.Lines {
		if strings.Contains(line, "sw_version") {
			return s.Lines[:i+1]
		}
	}
	return s.Lines
}
