package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"msconvert/internal/config"
	"msconvert/internal/cutfile"
	"msconvert/internal/mda"
	"msconvert/internal/pipeline"
	"msconvert/internal/services"
	"msconvert/internal/session"
	"msconvert/internal/testsupport"
	"msconvert/internal/tint"
)

func binSession(t *testing.T, dir string) session.Source {
	t.Helper()
	testsupport.WriteBinSession(t, dir, testsupport.BinSession{
		Name:          "rat",
		Tetrodes:      []int{1, 2},
		EEG:           map[int]int{1: 5},
		Packets:       16000,
		PositionEvery: 10,
		Signal: func(ch, i int) int16 {
			if i%1000 < 20 {
				return int16(-3000 - ch)
			}
			return int16(ch)
		},
	})
	return session.BinSource(dir, "rat")
}

func newRunner(cfg *config.Config, s pipeline.Sorter) *pipeline.Runner {
	return pipeline.New(cfg, s, nil)
}

func TestRunConvertsBinSessionEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := binSession(t, dir)
	fake := testsupport.NewFakeSorter()
	cfg := testsupport.NewConfig(t)

	result, err := newRunner(cfg, fake).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Before != session.StateUnconverted || result.After != session.StateFullyConverted {
		t.Fatalf("unexpected transition %s -> %s", result.Before, result.After)
	}

	layout := src.Layout()
	for _, path := range []string{
		layout.Firings(1), layout.Firings(2), layout.Set(), layout.Pos(),
		layout.Tetrode(1), layout.Cut(1), layout.Tetrode(2), layout.Cut(2),
		filepath.Join(dir, "rat_ms.eeg"), filepath.Join(dir, "rat_ms.egf"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
	}

	cut, err := cutfile.ReadFile(layout.Cut(1))
	if err != nil {
		t.Fatalf("read cut: %v", err)
	}
	// Events 5 and 47990 fall outside the clip window; 1000 is repeated.
	// Labels 1 and 3 become 1 and 2; MUA label 2 follows after a gap.
	if want := []int{1, 4, 2}; !slices.Equal(cut.Labels, want) {
		t.Fatalf("expected cut labels %v, got %v", want, cut.Labels)
	}
	if cut.Name != "rat_ms" {
		t.Fatalf("unexpected cut name %q", cut.Name)
	}
	tf, err := tint.ReadTetrode(layout.Tetrode(1))
	if err != nil {
		t.Fatalf("read tetrode: %v", err)
	}
	if got := tf.Samples(); !slices.Equal(got, []int64{1000, 20000, 30000}) {
		t.Fatalf("unexpected exported samples %v", got)
	}

	// Cleanup keeps the masked signal and drops the other intermediates.
	if _, err := os.Stat(layout.Filt(1)); !os.IsNotExist(err) {
		t.Fatalf("expected filtered input removed, got %v", err)
	}
	if _, err := os.Stat(layout.Pre(1)); !os.IsNotExist(err) {
		t.Fatalf("expected whitened signal removed, got %v", err)
	}
	if _, err := os.Stat(layout.Masked(1)); err != nil {
		t.Fatalf("expected masked signal kept: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := binSession(t, dir)
	fake := testsupport.NewFakeSorter()
	runner := newRunner(testsupport.NewConfig(t), fake)

	if _, err := runner.Run(context.Background(), src); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := len(fake.Calls())
	before, err := os.ReadFile(src.Layout().Cut(2))
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(src.Layout().Tetrode(2))
	if err != nil {
		t.Fatal(err)
	}

	result, err := runner.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !result.Skipped() {
		t.Fatalf("second run should report no work, state %s", result.Before)
	}
	if len(fake.Calls()) != calls {
		t.Fatalf("sorter re-run: %d calls after %d", len(fake.Calls()), calls)
	}
	after, err := os.ReadFile(src.Layout().Cut(2))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("cut file changed on second run")
	}
	info2, err := os.Stat(src.Layout().Tetrode(2))
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(info.ModTime()) {
		t.Fatal("tetrode file rewritten on second run")
	}
}

func TestRunRegeneratesDeletedExport(t *testing.T) {
	dir := t.TempDir()
	src := binSession(t, dir)
	fake := testsupport.NewFakeSorter()
	runner := newRunner(testsupport.NewConfig(t), fake)
	if _, err := runner.Run(context.Background(), src); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := os.Remove(src.Layout().Cut(1)); err != nil {
		t.Fatal(err)
	}
	calls := len(fake.Calls())

	result, err := runner.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Before != session.StatePartiallyConverted || result.After != session.StateFullyConverted {
		t.Fatalf("unexpected transition %s -> %s", result.Before, result.After)
	}
	if len(fake.Calls()) != calls {
		t.Fatal("sorter re-run for an export-only repair")
	}
}

func TestRunIsolatesTetrodeFailures(t *testing.T) {
	dir := t.TempDir()
	src := binSession(t, dir)
	fake := testsupport.NewFakeSorter()
	fake.Fail = map[int]error{
		2: services.Wrap(services.ErrSorterAbort, "sort", "run", "tetrode 2", nil),
	}

	result, err := newRunner(testsupport.NewConfig(t), fake).Run(context.Background(), src)
	if !errors.Is(err, services.ErrSorterAbort) {
		t.Fatalf("expected ErrSorterAbort, got %v", err)
	}
	if _, ok := result.Failed[2]; !ok {
		t.Fatalf("expected tetrode 2 recorded as failed, got %v", result.Failed)
	}
	if result.After != session.StatePartiallyConverted {
		t.Fatalf("expected partially converted, got %s", result.After)
	}
	layout := src.Layout()
	if _, err := os.Stat(layout.Cut(1)); err != nil {
		t.Fatalf("tetrode 1 should still be exported: %v", err)
	}
	if _, err := os.Stat(layout.Pos()); err != nil {
		t.Fatalf("position export should still run: %v", err)
	}
	if _, err := os.Stat(layout.Filt(1)); err != nil {
		t.Fatalf("failed session must not be cleaned up: %v", err)
	}
}

func TestRunReportsMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rat.bin"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newRunner(testsupport.NewConfig(t), testsupport.NewFakeSorter()).Run(context.Background(), session.BinSource(dir, "rat"))
	if !errors.Is(err, services.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}

func TestRunAppliesNotchFilter(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteBinSession(t, dir, testsupport.BinSession{
		Name:          "hum",
		Tetrodes:      []int{1},
		Packets:       16000,
		PositionEvery: 10,
		Signal: func(ch, i int) int16 {
			return int16(math.Round(1000 * math.Sin(2*math.Pi*60*float64(i)/48000)))
		},
	})
	src := session.BinSource(dir, "hum")
	cfg := testsupport.NewConfig(t, testsupport.WithNotch(60), testsupport.WithCleanup(false))
	if _, err := newRunner(cfg, testsupport.NewFakeSorter()).Run(context.Background(), src); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	a, err := mda.ReadFile(src.Layout().Filt(1))
	if err != nil {
		t.Fatalf("read filt: %v", err)
	}
	rows, err := mda.Rows[int16](a)
	if err != nil {
		t.Fatal(err)
	}
	var peak float64
	for _, v := range rows[0][12000:36000] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak > 100 {
		t.Fatalf("expected 60 Hz removed, residual peak %g", peak)
	}
}

func TestRunConvertsIntanSession(t *testing.T) {
	dir := t.TempDir()
	amp := func(ch, i int) int16 {
		if i%3000 < 20 {
			return 4000
		}
		return int16(10*ch + 1)
	}
	testsupport.WriteRHD(t, filepath.Join(dir, "mouse_230314_101500.rhd"), testsupport.RHDFile{
		Rate: 30000, Channels: 16, Settings: "axona16_new", Notes: [3]string{"Ada"}, Blocks: 500, Amplifier: amp,
	})
	testsupport.WriteRHD(t, filepath.Join(dir, "mouse_230314_101501.rhd"), testsupport.RHDFile{
		Rate: 30000, Channels: 16, Settings: "axona16_new", Blocks: 500, FirstTimestamp: 30000, Amplifier: amp,
	})
	sources, err := session.Discover(dir)
	if err != nil || len(sources) != 1 {
		t.Fatalf("Discover: %v %+v", err, sources)
	}
	src := sources[0]

	fake := &testsupport.FakeSorter{Times: []float64{1000, 40000}, Labels: []float64{1, 2}}
	cfg := testsupport.NewConfig(t, testsupport.WithCleanup(false))
	result, err := newRunner(cfg, fake).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.After != session.StateFullyConverted {
		t.Fatalf("expected fully converted, got %s", result.After)
	}
	if calls := fake.Calls(); len(calls) != 4 {
		t.Fatalf("expected four tetrodes sorted, got %v", calls)
	}

	layout := src.Layout()
	set, err := os.ReadFile(layout.Set())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"duration 2\r\n", "rawRate 30000\r\n", "experimenter Ada\r\n", "trial_date Tuesday, 14 Mar 2023\r\n"} {
		if !bytes.Contains(set, []byte(want)) {
			t.Fatalf("set missing %q:\n%s", want, set)
		}
	}

	// Tetrode 1 of axona16_new records channels 15, 13, 11 and 9.
	raw, err := mda.ReadFile(layout.Raw(1))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := mda.Rows[int16](raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || len(rows[0]) != 60000 {
		t.Fatalf("unexpected raw shape %dx%d", len(rows), len(rows[0]))
	}
	if rows[0][100] != -141 || rows[3][100] != -81 {
		t.Fatalf("expected negated probe channels, got %d %d", rows[0][100], rows[3][100])
	}
	if _, err := os.Stat(layout.Pos()); !os.IsNotExist(err) {
		t.Fatal("intan sessions have no position export")
	}
}
