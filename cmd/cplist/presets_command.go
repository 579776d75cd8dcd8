package main

import (
	"fmt"

	"github.com/JonMunkholm/cpleditor/internal/codec"
	"github.com/spf13/cobra"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the game version presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := codec.Presets()
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				rows = append(rows, []string{p.Key, p.Label})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Key", "Label"}, rows, nil, shouldColorize(out)))
			return nil
		},
	}
}
