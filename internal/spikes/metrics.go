package spikes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"msconvert/internal/services"
)

// MUATag marks a cluster the sorter's curation step judged multi-unit.
const MUATag = "mua"

// ClusterMetrics is one entry of a sorter metrics file.
type ClusterMetrics struct {
	Label   int            `json:"label"`
	Tags    []string       `json:"tags"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// Metrics is the decoded `_metrics.json` document.
type Metrics struct {
	Clusters []ClusterMetrics `json:"clusters"`
}

// ReadMetrics decodes a metrics file.
func ReadMetrics(path string) (*Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrMissingSource, "metrics", "read", path, err)
		}
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrFormat, "metrics", "decode", path, err)
	}
	return &m, nil
}

// MUALabels returns the labels tagged multi-unit, ascending. Tags match
// exactly; "MUA" is not the curation tag.
func (m *Metrics) MUALabels() []int {
	var out []int
	for _, c := range m.Clusters {
		if slices.Contains(c.Tags, MUATag) {
			out = append(out, c.Label)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// LoadMUA reads path and returns its multi-unit labels as a set suitable for
// Remap.
func LoadMUA(path string) (map[int]bool, error) {
	m, err := ReadMetrics(path)
	if err != nil {
		return nil, err
	}
	set := make(map[int]bool)
	for _, l := range m.MUALabels() {
		set[l] = true
	}
	return set, nil
}
