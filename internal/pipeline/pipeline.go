package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"msconvert/internal/config"
	"msconvert/internal/logging"
	"msconvert/internal/services"
	"msconvert/internal/session"
	"msconvert/internal/sorter"
)

// Sorter runs the external spike sorter for one tetrode.
type Sorter interface {
	Sort(ctx context.Context, job sorter.Job) error
}

// Runner converts sessions.
type Runner struct {
	cfg    *config.Config
	sorter Sorter
	logger *slog.Logger
}

// New builds a runner. logger may be nil.
func New(cfg *config.Config, s Sorter, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, sorter: s, logger: logging.NewComponentLogger(logger, "pipeline")}
}

// WithLogger returns a copy of the runner that logs to logger.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	clone := *r
	if logger != nil {
		clone.logger = logging.NewComponentLogger(logger, "pipeline")
	}
	return &clone
}

// Result summarizes one session run.
type Result struct {
	Session string
	Before  session.State
	After   session.State
	// Failed maps tetrode numbers (0 for session-wide stages) to their error.
	Failed  map[int]error
	Cleanup session.CleanupResult
	Elapsed time.Duration
}

// Skipped reports whether the session needed no work.
func (r *Result) Skipped() bool {
	return r.Before == session.StateFullyConverted
}

// run holds the per-session state shared by the stages.
type run struct {
	*Runner
	src    session.Source
	layout session.Layout
	report *session.Report
	failed map[int]error
}

func (s *run) fail(n int, err error) {
	if err == nil {
		return
	}
	s.failed[n] = errors.Join(s.failed[n], err)
}

func (s *run) failedTetrode(n int) bool {
	_, ok := s.failed[n]
	return ok
}

// Run converts src. A source that is missing yields ErrMissingSource; a
// source that cannot be decoded yields its codec error. Failures of
// individual tetrodes or stages are joined into the returned error after
// every other unit of work has been attempted.
func (r *Runner) Run(ctx context.Context, src session.Source) (*Result, error) {
	ctx = services.WithSession(ctx, src.Name)
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()

	report, err := session.Resolve(src, r.resolveOptions())
	if err != nil {
		return nil, err
	}
	result := &Result{Session: src.Name, Before: report.State, After: report.State}
	if report.State == session.StateMissingSource {
		return result, services.Wrap(services.ErrMissingSource, "pipeline", "resolve",
			fmt.Sprintf("%s: %s not found", src.Name, report.Missing), nil)
	}

	s := &run{Runner: r, src: src, layout: src.Layout(), report: report, failed: map[int]error{}}
	if report.NeedsWork() {
		logger.Info("session conversion started",
			logging.String(logging.FieldEventType, "session_start"),
			logging.String("kind", src.Kind.String()),
			logging.String("state", report.State.String()),
			logging.Int("tetrodes", len(report.Tetrodes)),
		)
		switch src.Kind {
		case session.KindBin:
			err = s.runBin(ctx)
		case session.KindIntan:
			err = s.runIntan(ctx)
		}
		if err != nil {
			s.fail(0, err)
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		after, err := session.Resolve(src, r.resolveOptions())
		if err != nil {
			return result, err
		}
		result.After = after.State
		report = after
	}

	if len(s.failed) == 0 && report.State == session.StateFullyConverted && r.cfg.Export.Cleanup {
		result.Cleanup = session.Cleanup(ctx, s.layout, report.Tetrodes, r.cfg.Sorter.Mask, logger)
	}
	result.Failed = s.failed
	result.Elapsed = time.Since(start)

	if len(s.failed) > 0 {
		errs := make([]error, 0, len(s.failed))
		for _, err := range s.failed {
			errs = append(errs, err)
		}
		return result, errors.Join(errs...)
	}
	if report.NeedsWork() {
		first, _ := report.FirstPending()
		return result, services.Wrap(services.ErrValidation, "pipeline", "verify",
			fmt.Sprintf("%s still %s after run: %s", src.Name, report.State, first), nil)
	}
	logger.Info("session conversion complete",
		logging.String(logging.FieldEventType, "session_complete"),
		logging.Duration("elapsed", result.Elapsed),
		logging.Int("removed_intermediates", len(result.Cleanup.Removed)),
	)
	return result, nil
}

func (r *Runner) resolveOptions() session.Options {
	return session.Options{DefaultProbe: r.cfg.Conversion.DefaultProbe}
}

// stage runs fn with stage-scoped logging, mirroring each outcome in the
// session log.
func (s *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx = services.WithStage(ctx, name)
	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	if err := fn(ctx); err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Error(err),
			logging.String("outcome", services.Outcome(err)),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// skip logs that a stage's outputs are already valid.
func (s *run) skip(ctx context.Context, name string) {
	logger := logging.WithContext(services.WithStage(ctx, name), s.logger)
	logger.Debug("stage outputs present, skipping", logging.String(logging.FieldEventType, "stage_skip"))
}

// sortJob describes the sorter run for tetrode n.
func (s *run) sortJob(n, rate int, kind, input, filtOut string) sorter.Job {
	return sorter.Job{
		Tetrode:    n,
		SampleRate: rate,
		InputKind:  kind,
		Input:      input,
		Firings:    s.layout.Firings(n),
		Metrics:    s.layout.Metrics(n),
		Pre:        s.layout.Pre(n),
		Masked:     s.layout.Masked(n),
		FiltOut:    filtOut,
		Log:        s.layout.Terminal(n),
	}
}

// sorted reports whether tetrode n already has valid sorter results.
func (s *run) sorted(n int) bool {
	return session.ValidateMDA(session.ArtifactFirings, n, s.layout.Firings(n)).OK() &&
		session.ValidateMetrics(n, s.layout.Metrics(n)).OK()
}

// sortTetrode runs the sorter unless its results are already valid.
func (s *run) sortTetrode(ctx context.Context, job sorter.Job) error {
	if s.sorted(job.Tetrode) {
		s.skip(ctx, "sort")
		return nil
	}
	return s.stage(ctx, "sort", func(ctx context.Context) error {
		return s.sorter.Sort(ctx, job)
	})
}
