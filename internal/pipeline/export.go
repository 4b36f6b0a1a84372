package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"msconvert/internal/axona"
	"msconvert/internal/cutfile"
	"msconvert/internal/mda"
	"msconvert/internal/services"
	"msconvert/internal/session"
	"msconvert/internal/spikes"
	"msconvert/internal/tint"
)

// firings holds the spike times and labels of a sorter run.
type firings struct {
	times  []int64
	labels []int
}

// readFirings decodes a firings array: one column per spike with the
// sample index in row 1 and the cluster label in row 2.
func readFirings(path string) (firings, error) {
	a, err := mda.ReadFile(path)
	if err != nil {
		return firings{}, err
	}
	if len(a.Dims) != 2 || a.Dims[0] < 3 {
		return firings{}, services.Wrap(services.ErrFormat, "export", "read firings",
			fmt.Sprintf("%s: dims %v, want at least 3 rows", path, a.Dims), nil)
	}
	rows, n := a.Dims[0], a.Dims[1]
	values := a.Float64s()
	f := firings{times: make([]int64, n), labels: make([]int, n)}
	for i := 0; i < n; i++ {
		f.times[i] = int64(math.Round(values[1+i*rows]))
		f.labels[i] = int(math.Round(values[2+i*rows]))
	}
	return f, nil
}

// readSignal loads a channels-by-samples MDA as int16 series.
func readSignal(path string) ([][]int16, error) {
	a, err := mda.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(a.Dims) != 2 {
		return nil, services.Wrap(services.ErrFormat, "export", "read signal",
			fmt.Sprintf("%s: dims %v, want 2", path, a.Dims), nil)
	}
	if v, err := mda.Rows[int16](a); err == nil {
		return v, nil
	}
	channels, n := a.Dims[0], a.Dims[1]
	values := a.Float64s()
	out := make([][]int16, channels)
	for c := range out {
		out[c] = make([]int16, n)
		for j := 0; j < n; j++ {
			out[c][j] = clampInt16(values[c+j*channels])
		}
	}
	return out, nil
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// signalPath is the sorter output waveforms are cut from.
func (s *run) signalPath(n int) string {
	if s.cfg.Sorter.Mask {
		return s.layout.Masked(n)
	}
	return s.layout.Filt(n)
}

// exportTetrode writes the tetrode spike file and cut file of tetrode n.
func (s *run) exportTetrode(ctx context.Context, n int, set *axona.Set) error {
	spikeCheck, cutCheck := session.ValidateTetrode(n, s.layout.Tetrode(n), s.layout.Cut(n))
	if spikeCheck.OK() && cutCheck.OK() {
		s.skip(ctx, "export")
		return nil
	}
	return s.stage(ctx, "export", func(ctx context.Context) error {
		f, err := readFirings(s.layout.Firings(n))
		if err != nil {
			return err
		}
		times, labels := spikes.RemoveRepeats(f.times, f.labels)

		signal, err := readSignal(s.signalPath(n))
		if err != nil {
			return err
		}
		kept, waves, err := tint.ExtractWaveforms(signal, times)
		if err != nil {
			return err
		}
		exported := make([]int64, len(kept))
		exportedLabels := make([]int, len(kept))
		for i, k := range kept {
			exported[i] = times[k]
			exportedLabels[i] = labels[k]
		}

		h, err := tint.TetrodeHeaderFromSet(set)
		if err != nil {
			return services.Wrap(services.ErrFormat, "export", "tetrode header", s.layout.Set(), err)
		}
		if err := tint.WriteTetrode(s.layout.Tetrode(n), h, exported, waves); err != nil {
			return err
		}
		return s.writeCut(n, exported, exportedLabels)
	})
}

// writeCut assigns a label to every spike of the written tetrode file. The
// file's timestamps are mapped back to samples and each one anchors a chunk
// centred on it; reconciliation picks the sorter event for every chunk.
func (s *run) writeCut(n int, times []int64, labels []int) error {
	written, err := tint.ReadTetrode(s.layout.Tetrode(n))
	if err != nil {
		return err
	}
	samples := written.Samples()
	starts := make([]int64, len(samples))
	for i, sample := range samples {
		starts[i] = sample - spikes.TargetOffset
	}
	picked, err := spikes.Reconcile(times, starts)
	if err != nil {
		return err
	}
	if len(picked) != len(samples) {
		return services.Wrap(services.ErrReconciliation, "export", "cut",
			fmt.Sprintf("tetrode %d: %d events for %d spikes", n, len(picked), len(samples)), nil)
	}

	labelOf := make(map[int64]int, len(times))
	for i, t := range times {
		if _, ok := labelOf[t]; !ok {
			labelOf[t] = labels[i]
		}
	}
	cutLabels := make([]int, len(picked))
	for i, t := range picked {
		cutLabels[i] = labelOf[t]
	}

	noise, err := spikes.LoadMUA(s.layout.Metrics(n))
	if err != nil {
		return err
	}
	remapped, _ := spikes.Remap(cutLabels, noise)
	return cutfile.WriteFile(s.layout.Cut(n), filepath.Base(s.layout.Export()), remapped)
}
