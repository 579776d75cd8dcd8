package main

import (
	"log/slog"

	"github.com/JonMunkholm/cpleditor/internal/logging"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	preset    string
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "cplist",
		Short:         "Inspect and edit PES commentary player lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.preset, "preset", "p", "2021", "Game version preset of the file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newPresetsCommand())
	rootCmd.AddCommand(newInspectCommand(opts))
	rootCmd.AddCommand(newEditCommand(opts))

	return rootCmd
}
