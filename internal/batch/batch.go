package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"msconvert/internal/config"
	"msconvert/internal/logging"
	"msconvert/internal/pipeline"
	"msconvert/internal/runlog"
	"msconvert/internal/services"
	"msconvert/internal/session"
)

// Outcomes reported for sessions that were not run.
const (
	OutcomeUpToDate = "up to date"
	OutcomeLocked   = "locked"
)

// LockSuffix names the per-session lock file <dir>/<basename><LockSuffix>.
const LockSuffix = ".msconvert.lock"

// Options narrows a batch run.
type Options struct {
	// Session restricts the run to one basename when set.
	Session string
}

// SessionResult describes what happened to one session.
type SessionResult struct {
	Session string
	Kind    session.Kind
	Before  session.State
	After   session.State
	Outcome string
	Err     error
	Elapsed time.Duration
}

// Summary collects the results of one batch run in discovery order.
type Summary struct {
	RunID    string
	Sessions []SessionResult
}

// Count returns how many sessions ended with outcome.
func (s *Summary) Count(outcome string) int {
	n := 0
	for _, r := range s.Sessions {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Runner drives the pipeline across sessions.
type Runner struct {
	cfg      *config.Config
	pipeline *pipeline.Runner
	ledger   *runlog.Store
	base     *slog.Logger
	logger   *slog.Logger
}

// New builds a batch runner. ledger and logger may be nil.
func New(cfg *config.Config, p *pipeline.Runner, ledger *runlog.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		pipeline: p,
		ledger:   ledger,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "batch"),
	}
}

// Run converts the sessions in dir. The returned error joins every session
// failure; sessions that are up to date, locked, or missing their source
// are reported in the summary but are not errors.
func (r *Runner) Run(ctx context.Context, dir string, opts Options) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)

	sources, err := session.Discover(dir)
	if err != nil {
		return summary, err
	}
	if opts.Session != "" {
		sources = filterSession(sources, opts.Session)
		if len(sources) == 0 {
			return summary, services.Wrap(services.ErrNotFound, "batch", "discover",
				fmt.Sprintf("no session %q in %s", opts.Session, dir), nil)
		}
	}
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String("directory", dir),
		logging.Int("sessions", len(sources)),
		logging.Int("parallel_sessions", r.cfg.Batch.ParallelSessions),
	)

	summary.Sessions = make([]SessionResult, len(sources))
	var g errgroup.Group
	g.SetLimit(max(1, r.cfg.Batch.ParallelSessions))
	for i, src := range sources {
		g.Go(func() error {
			summary.Sessions[i] = r.runSession(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range summary.Sessions {
		if res.Err != nil && !errors.Is(res.Err, services.ErrMissingSource) {
			errs = append(errs, fmt.Errorf("%s: %w", res.Session, res.Err))
		}
	}
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("complete", summary.Count(services.OutcomeComplete)),
		logging.Int("up_to_date", summary.Count(OutcomeUpToDate)),
		logging.Int("failed", len(errs)),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, errors.Join(errs...)
}

func (r *Runner) runSession(ctx context.Context, src session.Source) SessionResult {
	ctx = services.WithSession(ctx, src.Name)
	logger := logging.WithContext(ctx, r.logger)
	result := SessionResult{Session: src.Name, Kind: src.Kind}
	if ctx.Err() != nil {
		result.Outcome = services.Outcome(ctx.Err())
		result.Err = ctx.Err()
		return result
	}

	if src.Err != nil {
		result.Err = src.Err
		result.Outcome = services.Outcome(src.Err)
		logging.ErrorWithContext(logger, "session files unreadable", "session_unreadable",
			logging.Error(src.Err),
			logging.String(logging.FieldErrorHint, "check the .rhd files for truncation or mismatched headers"),
		)
		return result
	}

	report, err := session.Resolve(src, session.Options{DefaultProbe: r.cfg.Conversion.DefaultProbe})
	if err != nil {
		result.Err = err
		result.Outcome = services.Outcome(err)
		logging.ErrorWithContext(logger, "session source unreadable", "session_unreadable", logging.Error(err))
		return result
	}
	result.Before, result.After = report.State, report.State
	switch report.State {
	case session.StateFullyConverted:
		result.Outcome = OutcomeUpToDate
		logger.Debug("session up to date, skipping", logging.String(logging.FieldEventType, "session_skip"))
		return result
	case session.StateMissingSource:
		result.Err = services.Wrap(services.ErrMissingSource, "batch", "resolve", report.Missing, nil)
		result.Outcome = services.Outcome(result.Err)
		logging.WarnWithContext(logger, "session source missing, skipping", "session_missing_source",
			logging.String("missing", report.Missing),
			logging.String(logging.FieldImpact, "session not converted"),
		)
		return result
	}

	lock := flock.New(filepath.Join(src.Dir, src.Name+LockSuffix))
	locked, err := lock.TryLock()
	if err != nil {
		result.Err = fmt.Errorf("acquire session lock: %w", err)
		result.Outcome = services.Outcome(result.Err)
		return result
	}
	if !locked {
		result.Outcome = OutcomeLocked
		logging.WarnWithContext(logger, "session locked by another process, skipping", "session_locked",
			logging.String("lock", lock.Path()),
			logging.String(logging.FieldImpact, "session left to the process holding the lock"),
		)
		return result
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(logger, "failed to release session lock", "session_lock_release",
				logging.Error(err))
		}
	}()

	sessionLogger, closeLog, err := r.sessionLogger(src)
	if err != nil {
		logging.WarnWithContext(logger, "session log unavailable, using batch log", "session_log_open",
			logging.Error(err))
		sessionLogger, closeLog = r.base, func() {}
	}
	defer closeLog()

	entryID := r.begin(ctx, src, report.State, logger)
	start := time.Now()
	res, err := r.pipeline.WithLogger(sessionLogger).Run(ctx, src)
	result.Elapsed = time.Since(start)
	result.Err = err
	result.Outcome = services.Outcome(err)
	if res != nil {
		result.After = res.After
	}
	r.finish(ctx, entryID, result, logger)
	return result
}

func (r *Runner) begin(ctx context.Context, src session.Source, state session.State, logger *slog.Logger) int64 {
	if r.ledger == nil {
		return 0
	}
	runID, _ := services.RunIDFromContext(ctx)
	id, err := r.ledger.Begin(context.WithoutCancel(ctx), runlog.Entry{
		RunID:       runID,
		Session:     src.Name,
		Directory:   src.Dir,
		Kind:        src.Kind.String(),
		StateBefore: state.String(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "run ledger unavailable", "ledger_write",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run not recorded in history"),
		)
		return 0
	}
	return id
}

func (r *Runner) finish(ctx context.Context, id int64, result SessionResult, logger *slog.Logger) {
	if r.ledger == nil || id == 0 {
		return
	}
	if err := r.ledger.Finish(context.WithoutCancel(ctx), id, result.After.String(), result.Outcome, result.Err); err != nil {
		logging.WarnWithContext(logger, "run ledger unavailable", "ledger_write",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run outcome not recorded in history"),
		)
	}
}

func (r *Runner) sessionLogger(src session.Source) (*slog.Logger, func(), error) {
	logger, closer, err := logging.NewSessionLogger(r.base, r.cfg.Paths.LogDir, src.Name, r.cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = closer.Close() }, nil
}

func filterSession(sources []session.Source, name string) []session.Source {
	var out []session.Source
	for _, s := range sources {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}
