package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"msconvert/internal/session"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <dir>",
		Short: "Show the conversion state of every session in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sources, err := session.Discover(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintf(out, "No sessions found in %s\n", args[0])
				return nil
			}

			spec := tableSpec{
				headers:     []string{"Session", "Kind", "State", "Tetrodes", "Next", "Source"},
				aligns:      []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				colorColumn: 2,
				colorize:    shouldColorize(out),
			}
			opts := session.Options{DefaultProbe: cfg.Conversion.DefaultProbe}
			for _, src := range sources {
				row, kind := statusRow(src, opts)
				spec.rows = append(spec.rows, row)
				spec.rowKinds = append(spec.rowKinds, kind)
			}
			fmt.Fprintln(out, spec.render())
			return nil
		},
	}
}

func statusRow(src session.Source, opts session.Options) ([]string, statusKind) {
	size := humanize.Bytes(uint64(sourceSize(src)))
	if src.Err != nil {
		return []string{src.Name, src.Kind.String(), "unreadable", "-", src.Err.Error(), size}, statusError
	}
	report, err := session.Resolve(src, opts)
	if err != nil {
		return []string{src.Name, src.Kind.String(), "unreadable", "-", err.Error(), size}, statusError
	}

	next := "-"
	switch {
	case report.State == session.StateMissingSource:
		next = report.Missing
	case report.NeedsWork():
		if c, ok := report.FirstPending(); ok {
			next = filepath.Base(c.Path) + " " + c.Status.String()
		}
	}
	tetrodes := "-"
	if len(report.Tetrodes) > 0 {
		tetrodes = strconv.Itoa(len(report.Tetrodes))
	}
	return []string{src.Name, src.Kind.String(), report.State.String(), tetrodes, next, size}, stateKind(report.State)
}

func sourceSize(src session.Source) int64 {
	paths := src.Files
	if src.Kind == session.KindBin {
		paths = []string{src.Bin}
	}
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}
