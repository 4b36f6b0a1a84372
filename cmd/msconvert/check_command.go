package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"msconvert/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the sorter binary and working directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failed := false

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range deps.CheckBinaries(deps.SorterRequirements(cfg)) {
				kind, detail := statusOK, status.Command
				if !status.Available {
					kind, detail = statusError, status.Detail
					if status.Optional {
						kind = statusWarn
					} else {
						failed = true
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, detail, colorize))
			}

			for _, line := range renderSectionHeader("Directories", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, dir := range []struct{ label, path string }{
				{"Log directory", cfg.Paths.LogDir},
			} {
				result := deps.CheckDirectoryAccess(dir.label, dir.path)
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed = true
				}
				detail := fmt.Sprintf("%s (%s)", result.Path, result.Detail)
				fmt.Fprintln(out, renderStatusLine(dir.label, kind, detail, colorize))
			}

			if ctx.configSeen {
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, "defaults (no config file)", colorize))
			}
			if failed {
				return fmt.Errorf("environment check failed")
			}
			return nil
		},
	}
}
