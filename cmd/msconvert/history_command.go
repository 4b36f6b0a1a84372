package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"msconvert/internal/runlog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var sessionName string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			ledger, err := runlog.Open(cfg.Paths.RunDB)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer ledger.Close()

			var entries []runlog.Entry
			if name := strings.TrimSpace(sessionName); name != "" {
				entries, err = ledger.ForSession(cmd.Context(), name)
				if err == nil && limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
			} else {
				entries, err = ledger.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(entries, time.Now(), shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringVarP(&sessionName, "session", "s", "", "Only show runs of this session")
	return cmd
}

func renderHistory(entries []runlog.Entry, now time.Time, colorize bool) string {
	spec := tableSpec{
		headers:     []string{"Started", "Session", "Kind", "Outcome", "State", "Elapsed", "Error"},
		aligns:      []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		colorColumn: 3,
		colorize:    colorize,
	}
	for _, e := range entries {
		elapsed := "-"
		if d := e.Duration(); d > 0 {
			elapsed = d.Round(time.Second).String()
		}
		state := e.StateBefore
		if e.StateAfter != "" && e.StateAfter != e.StateBefore {
			state += " -> " + e.StateAfter
		}
		spec.rows = append(spec.rows, []string{
			humanize.RelTime(e.StartedAt, now, "ago", "from now"),
			e.Session,
			e.Kind,
			e.Outcome,
			state,
			elapsed,
			truncate(e.Error, 60),
		})
		spec.rowKinds = append(spec.rowKinds, outcomeKind(e.Outcome))
	}
	return spec.render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
