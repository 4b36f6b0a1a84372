package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"msconvert/internal/batch"
	"msconvert/internal/pipeline"
	"msconvert/internal/runlog"
	"msconvert/internal/session"
	"msconvert/internal/sorter"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var sessionName string

	cmd := &cobra.Command{
		Use:   "convert <dir>",
		Short: "Sort and export every session in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve directory: %w", err)
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			client, err := sorter.New(cfg, sorter.WithLogger(logger))
			if err != nil {
				return err
			}
			ledger, err := runlog.Open(cfg.Paths.RunDB)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := batch.New(cfg, pipeline.New(cfg, client, logger), ledger, logger)
			summary, runErr := runner.Run(runCtx, dir, batch.Options{Session: strings.TrimSpace(sessionName)})
			if summary != nil && len(summary.Sessions) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderBatchSummary(summary, shouldColorize(cmd.OutOrStdout())))
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&sessionName, "session", "s", "", "Convert only the session with this basename")
	return cmd
}

func renderBatchSummary(summary *batch.Summary, colorize bool) string {
	spec := tableSpec{
		headers:     []string{"Session", "Kind", "Outcome", "State", "Elapsed"},
		aligns:      []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		colorColumn: 2,
		colorize:    colorize,
	}
	for _, r := range summary.Sessions {
		elapsed := "-"
		if r.Elapsed > 0 {
			elapsed = r.Elapsed.Round(time.Second).String()
		}
		spec.rows = append(spec.rows, []string{r.Session, r.Kind.String(), r.Outcome, stateTransition(r.Before, r.After), elapsed})
		spec.rowKinds = append(spec.rowKinds, outcomeKind(r.Outcome))
	}
	return spec.render() + fmt.Sprintf("\nRun %s: %s processed", summary.RunID, humanize.Comma(int64(len(summary.Sessions))))
}

func stateTransition(before, after session.State) string {
	if before == after {
		return before.String()
	}
	return before.String() + " -> " + after.String()
}

