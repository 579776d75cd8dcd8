package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	_ "github.com/JonMunkholm/cpleditor/internal/codec/binlist" // Register PES presets
	"github.com/JonMunkholm/cpleditor/internal/core"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if core.IsUserFacing(err) {
				fmt.Fprintln(os.Stderr, core.FormatUserError(err))
			}
		}
		os.Exit(1)
	}
}
