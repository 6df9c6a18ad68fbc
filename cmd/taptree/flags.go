package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/taptree/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("workspace") {
		v, err := flags.GetStringArray("workspace")
		if err != nil {
			return values, fmt.Errorf("parse --workspace: %w", err)
		}
		values.Workspaces = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("command") {
		v, err := flags.GetStringArray("command")
		if err != nil {
			return values, fmt.Errorf("parse --command: %w", err)
		}
		values.Command = config.SliceFlag{Values: append([]string{}, v...)}
	}

	for _, f := range []struct {
		name string
		dst  *config.StringFlag
	}{
		{"suffix", &values.Suffix},
		{"format", &values.Format},
		{"log-level", &values.LogLevel},
		{"metrics-addr", &values.MetricsAddr},
	} {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}
