package rhd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"msconvert/internal/services"
)

// PinKind says whether an event pin is a digital input bit or an analog ADC channel.
type PinKind int

const (
	PinDigital PinKind = iota
	PinAnalog
)

// Pin identifies the input carrying a behavioural event.
type Pin struct {
	Index int
	Kind  PinKind
}

func (p Pin) String() string {
	if p.Kind == PinAnalog {
		return fmt.Sprintf("%dA", p.Index)
	}
	return fmt.Sprintf("%dD", p.Index)
}

// Cues holds the event pins configured for a recording.
type Cues struct {
	StartStop Pin
	Reward    Pin
	Lap       Pin
}

// DefaultCues applies when no cue file exists or a key is absent.
var DefaultCues = Cues{
	StartStop: Pin{Index: 0, Kind: PinDigital},
	Reward:    Pin{Index: 0, Kind: PinAnalog},
	Lap:       Pin{Index: 1, Kind: PinDigital},
}

// Current keys first, then the names older cue files used.
var (
	startStopKeys = []string{"Start/Stop Input:", "Start/Stop Digital Input:"}
	rewardKeys    = []string{"Reward Input:", "Reward Digital Input:"}
	lapKeys       = []string{"Lap Input:", "Lap Digital Input:"}
)

// CuesPath is <dir>/<basename>_cues.json.
func CuesPath(dir, basename string) string {
	return filepath.Join(dir, basename+"_cues.json")
}

// LoadCues reads the cue file for basename. A missing file yields DefaultCues.
func LoadCues(dir, basename string) (Cues, error) {
	cues := DefaultCues
	path := CuesPath(dir, basename)
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cues, nil
	}
	if err != nil {
		return cues, err
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return cues, services.Wrap(services.ErrFormat, "rhd", "load cues", path, err)
	}
	for _, target := range []struct {
		keys []string
		pin  *Pin
	}{
		{startStopKeys, &cues.StartStop},
		{rewardKeys, &cues.Reward},
		{lapKeys, &cues.Lap},
	} {
		for _, key := range target.keys {
			value, ok := values[key]
			if !ok {
				continue
			}
			pin, err := parseCueValue(value)
			if err != nil {
				return cues, services.Wrap(services.ErrFormat, "rhd", "load cues", fmt.Sprintf("%s %q", path, key), err)
			}
			*target.pin = pin
			break
		}
	}
	return cues, nil
}

// parseCueValue accepts a bare integer or a numeric string, both of which
// older files used for digital pins, or an "<n>D"/"<n>A" string.
func parseCueValue(raw json.RawMessage) (Pin, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return Pin{Index: n, Kind: PinDigital}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Pin{}, fmt.Errorf("pin must be an integer or string, got %s", raw)
	}
	return ParsePin(s)
}

// ParsePin parses "3D", "0A", or a bare integer string.
func ParsePin(s string) (Pin, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return Pin{Index: n, Kind: PinDigital}, nil
	}
	if len(s) < 2 {
		return Pin{}, fmt.Errorf("invalid pin %q", s)
	}
	var kind PinKind
	switch strings.ToUpper(s[len(s)-1:]) {
	case "D":
		kind = PinDigital
	case "A":
		kind = PinAnalog
	default:
		return Pin{}, fmt.Errorf("invalid pin %q: want a D or A suffix", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return Pin{}, fmt.Errorf("invalid pin %q", s)
	}
	return Pin{Index: n, Kind: kind}, nil
}

// analogHigh is the voltage at or above which an analog cue line counts as high.
const analogHigh = 3.0

// PinSignal returns the pin's trace: 0/1 for digital pins, volts clipped at
// analogHigh for analog pins. The data must have been read with Digital or ADC set.
func (d *Data) PinSignal(p Pin) ([]float64, error) {
	switch p.Kind {
	case PinDigital:
		if p.Index < 0 || p.Index >= len(d.DigitalIn) {
			return nil, fmt.Errorf("digital pin %d not recorded (%d digital inputs read)", p.Index, len(d.DigitalIn))
		}
		bits := d.DigitalIn[p.Index]
		out := make([]float64, len(bits))
		for i, b := range bits {
			out[i] = float64(b)
		}
		return out, nil
	case PinAnalog:
		if p.Index < 0 || p.Index >= len(d.BoardADC) {
			return nil, fmt.Errorf("analog pin %d not recorded (%d ADC channels read)", p.Index, len(d.BoardADC))
		}
		scale := AnalogScale(d.Header.EvalBoardMode)
		raw := d.BoardADC[p.Index]
		out := make([]float64, len(raw))
		for i, v := range raw {
			out[i] = min(float64(v)*scale, analogHigh)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown pin kind %d", p.Kind)
	}
}

// EventIndices returns the rising edges of the pin's trace.
func (d *Data) EventIndices(p Pin) ([]int, error) {
	signal, err := d.PinSignal(p)
	if err != nil {
		return nil, err
	}
	minHeight := 0.0
	if p.Kind == PinAnalog {
		minHeight = analogHigh
	}
	return RisingEdges(signal, minHeight), nil
}

// DataLimits returns the recording window marked by the start/stop pin. Extra
// pulses keep the first and last; fewer than two fall back to the earliest and
// latest edge on any digital input. ok is false when no window can be found.
func (d *Data) DataLimits(p Pin) (start, stop int, ok bool, err error) {
	edges, err := d.EventIndices(p)
	if err != nil {
		return 0, 0, false, err
	}
	if len(edges) >= 2 {
		return edges[0], edges[len(edges)-1], true, nil
	}
	var all []int
	for c := range d.DigitalIn {
		e, _ := d.EventIndices(Pin{Index: c, Kind: PinDigital})
		all = append(all, e...)
	}
	if len(all) < 2 {
		return 0, 0, false, nil
	}
	start, stop = all[0], all[0]
	for _, v := range all[1:] {
		start = min(start, v)
		stop = max(stop, v)
	}
	return start, stop, true, nil
}

// RisingEdges finds the first sample of every plateau or peak reached by a
// strict rise, ignoring the first and last samples and anything below
// minHeight.
func RisingEdges(x []float64, minHeight float64) []int {
	n := len(x)
	if n < 3 {
		return nil
	}
	var out []int
	for i := 1; i < n-1; i++ {
		if x[i]-x[i-1] > 0 && x[i+1]-x[i] <= 0 && x[i] >= minHeight {
			out = append(out, i)
		}
	}
	return out
}
