package tint

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"msconvert/internal/axona"
	"msconvert/internal/services"
)

type fileKind int

const (
	kindTetrode fileKind = iota + 1
	kindPos
	kindEEG
	kindEGF
)

func (k fileKind) String() string {
	switch k {
	case kindTetrode:
		return "tetrode"
	case kindPos:
		return "pos"
	case kindEEG:
		return "eeg"
	case kindEGF:
		return "egf"
	default:
		return "unknown"
	}
}

// countKeys maps the count field of each file kind.
var countKeys = []struct {
	key  string
	kind fileKind
}{
	{"num_spikes", kindTetrode},
	{"num_pos_samples", kindPos},
	{"num_EEG_samples", kindEEG},
	{"num_EGF_samples", kindEGF},
}

type parsedFile struct {
	kind   fileKind
	fields map[string]string
	count  int
	body   []byte
}

func parse(data []byte) (*parsedFile, error) {
	idx := bytes.Index(data, []byte(dataStart))
	if idx < 0 {
		return nil, services.Wrap(services.ErrFormat, "tint", "parse", "missing data_start", nil)
	}
	if !bytes.HasSuffix(data, []byte(dataEnd)) {
		return nil, services.Wrap(services.ErrTruncated, "tint", "parse", "missing data_end trailer", nil)
	}

	p := &parsedFile{fields: map[string]string{}}
	for _, line := range strings.Split(string(data[:idx]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if _, seen := p.fields[key]; !seen {
			p.fields[key] = strings.TrimSpace(value)
		}
	}
	for _, ck := range countKeys {
		if _, ok := p.fields[ck.key]; !ok {
			continue
		}
		n, err := headerInt(p.fields, ck.key)
		if err != nil || n < 0 {
			return nil, services.Wrap(services.ErrFormat, "tint", "parse", ck.key, err)
		}
		p.kind, p.count = ck.kind, n
		break
	}
	if p.kind == 0 {
		return nil, services.Wrap(services.ErrFormat, "tint", "parse", "no sample count in header", nil)
	}

	p.body = data[idx+len(dataStart) : len(data)-len(dataEnd)]
	want := p.count * p.kind.recordSize()
	if len(p.body) != want {
		return nil, services.Wrap(services.ErrTruncated, "tint", "parse",
			fmt.Sprintf("%s body is %d bytes, header implies %d", p.kind, len(p.body), want), nil)
	}
	return p, nil
}

func (k fileKind) recordSize() int {
	switch k {
	case kindTetrode:
		return SpikeRecordSize
	case kindPos:
		return PosRecordSize
	case kindEEG:
		return 1
	case kindEGF:
		return 2
	default:
		return 0
	}
}

func headerInt(fields map[string]string, key string) (int, error) {
	value, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	parts := strings.Fields(value)
	if len(parts) == 0 {
		return 0, fmt.Errorf("empty %s", key)
	}
	f, err := strconv.ParseFloat(parts[0], 64)
	return int(f), err
}

// Check verifies that the binary Tint file at path is complete: it has a
// header ending in data_start, a data_end trailer, and exactly the body
// length its sample count implies.
func Check(path string) error {
	_, err := Records(path)
	return err
}

// Records validates the binary Tint file at path like Check and returns its
// declared spike or sample count.
func Records(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, services.Wrap(services.ErrNotFound, "tint", "check", path, err)
	}
	p, err := parse(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return p.count, nil
}

// CheckSet verifies that a converted set file parses and has a whole-second
// duration.
func CheckSet(path string) error {
	set, err := axona.ReadSet(path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "tint", "check set", path, err)
	}
	d, err := set.Duration()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if d != float64(int(d)) {
		return services.Wrap(services.ErrFormat, "tint", "check set",
			fmt.Sprintf("%s: duration %g is not whole seconds", path, d), nil)
	}
	return nil
}
