package testsupport

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"msconvert/internal/mda"
	"msconvert/internal/sorter"
)

// FakeSorter stands in for ml-run-process. It copies the input signal to
// every requested signal output and writes the same firings for every
// tetrode.
type FakeSorter struct {
	// Times and Labels fill firings rows 1 and 2.
	Times  []float64
	Labels []float64
	// MUA lists the labels tagged "mua" in metrics.json.
	MUA []int
	// Fail makes the listed tetrodes return their error without output.
	Fail map[int]error

	mu    sync.Mutex
	calls []int
}

// NewFakeSorter returns a sorter reporting six events over three clusters,
// cluster 2 tagged as multi-unit activity.
func NewFakeSorter() *FakeSorter {
	return &FakeSorter{
		Times:  []float64{5, 1000, 1000, 20000, 30000, 47990},
		Labels: []float64{2, 1, 1, 2, 3, 1},
		MUA:    []int{2},
	}
}

// Sort implements pipeline.Sorter.
func (f *FakeSorter) Sort(_ context.Context, job sorter.Job) error {
	f.mu.Lock()
	f.calls = append(f.calls, job.Tetrode)
	err := f.Fail[job.Tetrode]
	f.mu.Unlock()
	if err != nil {
		return err
	}

	input, err := mda.ReadFile(job.Input)
	if err != nil {
		return err
	}
	for _, path := range []string{job.Pre, job.Masked, job.FiltOut} {
		if path == "" {
			continue
		}
		if err := mda.WriteFile(path, input); err != nil {
			return err
		}
	}
	firings, err := mda.FromRows([][]float64{make([]float64, len(f.Times)), f.Times, f.Labels})
	if err != nil {
		return err
	}
	if err := mda.WriteFile(job.Firings, firings); err != nil {
		return err
	}

	var clusters []string
	for _, label := range distinctLabels(f.Labels) {
		tags := `[]`
		if slices.Contains(f.MUA, label) {
			tags = `["mua"]`
		}
		clusters = append(clusters, fmt.Sprintf(`{"label":%d,"tags":%s}`, label, tags))
	}
	doc := `{"clusters":[` + strings.Join(clusters, ",") + `]}`
	return os.WriteFile(job.Metrics, []byte(doc), 0o644)
}

// Calls returns the tetrodes sorted so far, in call order.
func (f *FakeSorter) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func distinctLabels(labels []float64) []int {
	var out []int
	for _, l := range labels {
		if !slices.Contains(out, int(l)) {
			out = append(out, int(l))
		}
	}
	slices.Sort(out)
	return out
}
