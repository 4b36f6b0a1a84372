package rhd

import (
	"fmt"
	"sort"
	"strings"

	"msconvert/internal/services"
)

// ProbeMap maps a 1-based tetrode number to its four 1-based amplifier
// channel numbers.
type ProbeMap map[int][4]int

// Tetrodes returns the probe's tetrode numbers in ascending order.
func (p ProbeMap) Tetrodes() []int {
	out := make([]int, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

var probeMaps = map[string]ProbeMap{
	"buzsaki32": {
		1: {5, 4, 6, 3},
		2: {13, 12, 14, 11},
		3: {7, 2, 8, 1},
		4: {15, 10, 16, 9},
		5: {21, 20, 22, 19},
		6: {29, 28, 30, 27},
		7: {23, 18, 24, 17},
		8: {31, 26, 32, 25},
	},
	"buzsaki16": {
		1: {5, 4, 6, 3},
		2: {13, 12, 14, 11},
		3: {7, 2, 8, 1},
		4: {15, 10, 16, 9},
	},
	"axona16_angled": {
		1: {1, 2, 3, 4},
		2: {5, 6, 7, 8},
		3: {9, 10, 11, 12},
		4: {13, 14, 15, 16},
	},
	"axona16_new": {
		1: {15, 13, 11, 9},
		2: {16, 14, 12, 10},
		3: {1, 3, 5, 7},
		4: {2, 4, 6, 8},
	},
}

// LookupProbe returns the channel map for a probe name.
func LookupProbe(name string) (ProbeMap, error) {
	p, ok := probeMaps[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "rhd", "probe",
			fmt.Sprintf("unknown probe %q (known: %s)", name, strings.Join(ProbeNames(), ", ")), nil)
	}
	return p, nil
}

// ProbeNames lists the known probe names.
func ProbeNames() []string {
	names := make([]string, 0, len(probeMaps))
	for name := range probeMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveProbe decides which probe recorded the file. The acquisition setup
// stores the probe name as the settings filename; older recordings name it in
// a note, either bare or as "probe: <name>". Any other non-empty note is taken
// to be the experimenter.
func ResolveProbe(h *Header, fallback string) (probe, experimenter string) {
	fromNotes, experimenter := readNotes(h.Notes)
	switch {
	case strings.TrimSpace(h.SettingsFilename) != "":
		probe = strings.TrimSpace(h.SettingsFilename)
	case fromNotes != "":
		probe = fromNotes
	default:
		probe = fallback
	}
	return strings.ToLower(probe), experimenter
}

func readNotes(notes [3]string) (probe, experimenter string) {
	for _, note := range notes {
		trimmed := strings.TrimSpace(note)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, ok := probeMaps[lower]; ok {
			probe = lower
			continue
		}
		if idx := strings.Index(lower, "probe:"); idx >= 0 {
			probe = strings.TrimSpace(lower[idx+len("probe:"):])
			continue
		}
		experimenter = trimmed
	}
	return probe, experimenter
}
