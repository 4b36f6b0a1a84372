package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"msconvert/internal/batch"
	"msconvert/internal/config"
	"msconvert/internal/logging"
	"msconvert/internal/pipeline"
	"msconvert/internal/runlog"
	"msconvert/internal/services"
	"msconvert/internal/session"
	"msconvert/internal/testsupport"
)

func writeSession(t *testing.T, dir, name string) {
	t.Helper()
	testsupport.WriteBinSession(t, dir, testsupport.BinSession{
		Name:          name,
		Tetrodes:      []int{1},
		Packets:       16000,
		PositionEvery: 10,
		Signal: func(ch, i int) int16 {
			if i%1000 < 20 {
				return -3000
			}
			return 0
		},
	})
}

func newRunner(t *testing.T, cfg *config.Config, fake *testsupport.FakeSorter) (*batch.Runner, *runlog.Store) {
	t.Helper()
	ledger := testsupport.MustOpenLedger(t, cfg)
	return batch.New(cfg, pipeline.New(cfg, fake, nil), ledger, logging.NewNop()), ledger
}

func result(t *testing.T, s *batch.Summary, name string) batch.SessionResult {
	t.Helper()
	for _, r := range s.Sessions {
		if r.Session == name {
			return r
		}
	}
	t.Fatalf("no result for session %q in %+v", name, s.Sessions)
	return batch.SessionResult{}
}

func TestRunConvertsEverySession(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "a")
	writeSession(t, dir, "b")
	cfg := testsupport.NewConfig(t, testsupport.WithParallelSessions(2))
	runner, ledger := newRunner(t, cfg, testsupport.NewFakeSorter())

	summary, err := runner.Run(context.Background(), dir, batch.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	for _, name := range []string{"a", "b"} {
		r := result(t, summary, name)
		if r.Outcome != "complete" || r.After != session.StateFullyConverted {
			t.Fatalf("session %s: unexpected result %+v", name, r)
		}
		if _, err := os.Stat(logging.SessionLogPath(cfg.Paths.LogDir, name)); err != nil {
			t.Fatalf("expected session log for %s: %v", name, err)
		}
	}

	entries, err := ledger.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.RunID != summary.RunID || e.Outcome != "complete" || e.StateBefore != "unconverted" || e.StateAfter != "fully converted" {
			t.Fatalf("unexpected ledger entry %+v", e)
		}
	}
}

func TestRunSkipsUpToDateSessions(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "a")
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewFakeSorter()
	runner, ledger := newRunner(t, cfg, fake)

	if _, err := runner.Run(context.Background(), dir, batch.Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := len(fake.Calls())
	summary, err := runner.Run(context.Background(), dir, batch.Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if r := result(t, summary, "a"); r.Outcome != batch.OutcomeUpToDate {
		t.Fatalf("expected up to date, got %+v", r)
	}
	if len(fake.Calls()) != calls {
		t.Fatal("sorter invoked for an up to date session")
	}
	entries, err := ledger.Recent(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected only the first run recorded, got %d (%v)", len(entries), err)
	}
}

func TestRunSkipsLockedSession(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "a")
	lock := flock.New(filepath.Join(dir, "a"+batch.LockSuffix))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: %v %v", locked, err)
	}
	defer lock.Unlock()

	fake := testsupport.NewFakeSorter()
	runner, _ := newRunner(t, testsupport.NewConfig(t), fake)
	summary, err := runner.Run(context.Background(), dir, batch.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if r := result(t, summary, "a"); r.Outcome != batch.OutcomeLocked {
		t.Fatalf("expected locked, got %+v", r)
	}
	if len(fake.Calls()) != 0 {
		t.Fatal("sorter invoked for a locked session")
	}
}

func TestRunReportsFailuresAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "a")
	writeSession(t, dir, "b")
	// A .bin without its .set is listed but skipped.
	if err := os.WriteFile(filepath.Join(dir, "orphan.bin"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	fake := testsupport.NewFakeSorter()
	fake.Fail = map[int]error{1: services.Wrap(services.ErrSorterAbort, "sort", "run", "", nil)}
	cfg := testsupport.NewConfig(t)
	runner, ledger := newRunner(t, cfg, fake)

	summary, err := runner.Run(context.Background(), dir, batch.Options{})
	if !errors.Is(err, services.ErrSorterAbort) {
		t.Fatalf("expected ErrSorterAbort, got %v", err)
	}
	if got := len(fake.Calls()); got != 2 {
		t.Fatalf("expected both sessions attempted, got %d sorter calls", got)
	}
	if r := result(t, summary, "orphan"); r.Outcome != "skipped" || !errors.Is(r.Err, services.ErrMissingSource) {
		t.Fatalf("unexpected orphan result %+v", r)
	}
	entries, err := ledger.ForSession(context.Background(), "a")
	if err != nil || len(entries) != 1 {
		t.Fatalf("ForSession: %v %v", entries, err)
	}
	if entries[0].Outcome != "failed" || entries[0].Error == "" {
		t.Fatalf("unexpected ledger entry %+v", entries[0])
	}
}

func TestRunSingleSession(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "a")
	writeSession(t, dir, "b")
	fake := testsupport.NewFakeSorter()
	runner, _ := newRunner(t, testsupport.NewConfig(t), fake)

	summary, err := runner.Run(context.Background(), dir, batch.Options{Session: "b"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(summary.Sessions) != 1 || summary.Sessions[0].Session != "b" {
		t.Fatalf("unexpected sessions %+v", summary.Sessions)
	}

	if _, err := runner.Run(context.Background(), dir, batch.Options{Session: "nope"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
