package sorter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"msconvert/internal/config"
	"msconvert/internal/logging"
	"msconvert/internal/mda"
	"msconvert/internal/services"
	"msconvert/internal/spikes"
)

// Terminal log markers written by ml-run-process.
const (
	cachedSentinel = "[ Checking process cache ... ]\n[ Process %s already completed. ]\n[ Done. ]\n"
	savedSentinel  = "[ Saving to process cache ... ]\n[ Removing temporary directory ... ]\n[ Done. ]\n"
	abortMarker    = "Process returned with non-zero exit code"
)

const defaultExitGrace = 30 * time.Second

// Client runs sorting jobs.
type Client struct {
	cfg         *config.Config
	binary      string
	exec        Executor
	logger      *slog.Logger
	stall       time.Duration
	poll        time.Duration
	maxAttempts int
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger for attempt and retry events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTiming overrides the stall timeout and poll interval from configuration.
func WithTiming(stall, poll time.Duration) Option {
	return func(c *Client) {
		if stall > 0 {
			c.stall = stall
		}
		if poll > 0 {
			c.poll = poll
		}
	}
}

// New constructs a sorter client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "sort", "init", "configuration is required", nil)
	}
	binary := strings.TrimSpace(cfg.Sorter.Binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sort", "init", "sorter binary is empty", nil)
	}
	c := &Client{
		cfg:         cfg,
		binary:      binary,
		exec:        commandExecutor{},
		logger:      logging.NewNop(),
		stall:       time.Duration(cfg.Sorter.StallTimeoutSeconds) * time.Second,
		poll:        time.Duration(cfg.Sorter.PollIntervalMillis) * time.Millisecond,
		maxAttempts: cfg.Sorter.MaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}
	if c.poll <= 0 {
		c.poll = 500 * time.Millisecond
	}
	c.logger = logging.NewComponentLogger(c.logger, "sorter")
	return c, nil
}

// Binary returns the sorter executable name.
func (c *Client) Binary() string { return c.binary }

// Done reports whether job's outputs already exist and are well formed, in
// which case Sort has nothing to do.
func (c *Client) Done(job Job) bool {
	for _, path := range c.expectedMDA(job) {
		if _, err := mda.Stat(path); err != nil {
			return false
		}
	}
	_, err := spikes.ReadMetrics(job.Metrics)
	return err == nil
}

func (c *Client) expectedMDA(job Job) []string {
	paths := []string{job.Firings}
	if c.cfg.Sorter.Whiten && job.Pre != "" {
		paths = append(paths, job.Pre)
	}
	if c.cfg.Sorter.Mask && job.Masked != "" {
		paths = append(paths, job.Masked)
	}
	if job.FiltOut != "" {
		paths = append(paths, job.FiltOut)
	}
	return paths
}

// Sort runs job unless its outputs are already present. Stalled or silent
// attempts are restarted with a fresh terminal log up to the configured
// attempt limit; exhausting it yields ErrSorterTimeout. A pipeline that
// reports a non-zero exit yields ErrSorterAbort and is not retried.
func (c *Client) Sort(ctx context.Context, job Job) error {
	logger := logging.WithContext(ctx, c.logger)
	if c.Done(job) {
		logger.Info("sort outputs present, skipping", logging.String("firings", filepath.Base(job.Firings)))
		return nil
	}
	args := c.Args(job)
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(job.Log); err != nil && !errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrExternalTool, "sort", "reset log", job.Log, err)
		}
		logger.Info("sort attempt started",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.maxAttempts),
			logging.String("input", filepath.Base(job.Input)),
		)
		start := time.Now()
		result, runErr := c.attempt(ctx, job, args)
		switch result {
		case resultSuccess:
			if !c.Done(job) {
				return services.Wrap(services.ErrExternalTool, "sort", "outputs",
					fmt.Sprintf("tetrode %d reported success without usable outputs", job.Tetrode), runErr)
			}
			logger.Info("sort complete",
				logging.Int("attempt", attempt),
				logging.Duration("elapsed", time.Since(start)),
			)
			return nil
		case resultAbort:
			return services.Wrap(services.ErrSorterAbort, "sort", "run",
				fmt.Sprintf("tetrode %d: pipeline exited with an error (see %s)", job.Tetrode, job.Log), runErr)
		case resultCanceled:
			return ctx.Err()
		}
		attrs := []logging.Attr{
			logging.Int("attempt", attempt),
			logging.String("reason", result.String()),
			logging.String(logging.FieldErrorHint, "check the sorter installation and the terminal log"),
			logging.String(logging.FieldImpact, "sort restarted with a fresh log"),
		}
		if runErr != nil {
			attrs = append(attrs, logging.Error(runErr))
		}
		logging.WarnWithContext(logger, "sort attempt did not finish", "sort_retry", attrs...)
	}
	return services.Wrap(services.ErrSorterTimeout, "sort", "run",
		fmt.Sprintf("tetrode %d: no completion after %d attempts", job.Tetrode, c.maxAttempts), nil)
}

// exitGrace bounds the wait for the process to exit once its log reports
// completion.
func (c *Client) exitGrace() time.Duration {
	if c.stall > 0 {
		return c.stall
	}
	return defaultExitGrace
}

type result int

const (
	resultRetry result = iota
	resultStalled
	resultSuccess
	resultAbort
	resultCanceled
)

func (r result) String() string {
	switch r {
	case resultStalled:
		return "log stalled"
	case resultSuccess:
		return "success"
	case resultAbort:
		return "abort"
	case resultCanceled:
		return "canceled"
	default:
		return "exited without completion marker"
	}
}

// attempt launches one pipeline run and watches its terminal log.
func (c *Client) attempt(ctx context.Context, job Job, args []string) (result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &terminalLog{path: job.Log}
	done := make(chan error, 1)
	go func() {
		err := c.exec.Run(runCtx, c.binary, args, out.writeLine)
		done <- errors.Join(err, out.close())
	}()

	w := watcher{pipeline: c.cfg.Sorter.Pipeline, path: job.Log, stall: c.stall}
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	w.reset(time.Now())

	finish := func(r result) (result, error) {
		cancel()
		return r, <-done
	}

	for {
		select {
		case <-ctx.Done():
			return finish(resultCanceled)
		case err := <-done:
			// Judge the final log once the writer has closed it.
			if r := w.check(time.Now()); r == resultSuccess || r == resultAbort {
				return r, err
			}
			return resultRetry, err
		case now := <-ticker.C:
			switch r := w.check(now); r {
			case resultSuccess:
				// Give the process a grace period to exit after the final
				// marker, then stop it; the outputs are already written.
				select {
				case err := <-done:
					return r, err
				case <-ctx.Done():
					return finish(resultCanceled)
				case <-time.After(c.exitGrace()):
					c.logger.Debug("sorter still running after completion marker, stopping it",
						logging.String("log", filepath.Base(job.Log)))
					_, _ = finish(resultSuccess)
					return resultSuccess, nil
				}
			case resultAbort, resultStalled:
				return finish(r)
			}
		}
	}
}

// watcher tracks the last line of a terminal log to detect stalls.
type watcher struct {
	pipeline string
	path     string
	stall    time.Duration

	lastLine    string
	lastChanged time.Time
}

func (w *watcher) reset(now time.Time) {
	w.lastLine = ""
	w.lastChanged = now
}

// check classifies the log at path. resultRetry means keep polling.
func (w *watcher) check(now time.Time) result {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if w.stall > 0 && now.Sub(w.lastChanged) >= w.stall {
			return resultStalled
		}
		return resultRetry
	}
	text := string(data)
	if Finished(text, w.pipeline) {
		return resultSuccess
	}
	if strings.Contains(text, abortMarker) {
		return resultAbort
	}
	if line := lastLine(text); line != w.lastLine {
		w.lastLine = line
		w.lastChanged = now
		return resultRetry
	}
	if w.stall > 0 && now.Sub(w.lastChanged) >= w.stall {
		return resultStalled
	}
	return resultRetry
}

// Finished reports whether a terminal log contains one of the pipeline's
// completion blocks. Output after the block does not matter.
func Finished(text, pipeline string) bool {
	return strings.Contains(text, fmt.Sprintf(cachedSentinel, pipeline)) ||
		strings.Contains(text, savedSentinel)
}

func lastLine(text string) string {
	text = strings.TrimRight(text, "\n")
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return text
}

// terminalLog appends pipeline output to a file that is created on the first
// line, so an absent log means the pipeline never produced output.
type terminalLog struct {
	path string
	mu   sync.Mutex
	f    *os.File
	err  error
}

func (t *terminalLog) writeLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if t.f == nil {
		t.f, t.err = os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if t.err != nil {
			return
		}
	}
	_, t.err = t.f.WriteString(line + "\n")
}

func (t *terminalLog) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return t.err
	}
	err := t.f.Close()
	t.f = nil
	return errors.Join(t.err, err)
}
