package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taptree",
		Short:         "Taptree discovers and runs node-tap suites as a test tree",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.StringArray("workspace", nil, "workspace root to include (repeatable)")
	persistent.StringArray("command", nil, "test command argv element (repeatable)")
	persistent.String("suffix", ".js", "test file suffix")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.BoolP("verbose", "v", false, "stream test command stderr and print run output")
	persistent.String("log-level", "warn", "log level (trace|debug|info|warn|error|crit)")
	persistent.String("metrics-addr", "", "serve prometheus metrics on this address while watching")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
