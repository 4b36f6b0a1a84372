package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	root := &cobra.Command{
		Use:   "msconvert",
		Short: "Convert Axona and Intan recordings to Tint via MountainSort",
		Long: `msconvert spike-sorts tetrode recordings with MountainSort and writes the
results back as Tint sessions.

Axona sessions (.set/.bin) and Intan sessions (.rhd) found in a directory are
converted to MDA, sorted tetrode by tetrode, and exported as cut files,
tetrode files, and EEG/position files. Finished work is detected on disk, so
re-running convert only does what is missing.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if isOffline(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (default $MSCONVERT_CONFIG or ~/.config/msconvert/config.toml)")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Log at debug level regardless of logging.level")

	root.AddCommand(
		newConvertCommand(ctx),
		newStatusCommand(ctx),
		newInspectCommand(ctx),
		newHistoryCommand(ctx),
		newCheckCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
