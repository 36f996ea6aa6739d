// Package cli implements the chemlens command line interface: offline
// resolution of procurement descriptions without a running API server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// NewRootCommand assembles the chemlens command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "chemlens",
		Short:         "ChemLens — chemical procurement identity resolution",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		"configs/config.yaml", "path to the configuration file")

	root.AddCommand(newResolveCommand(opts))
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
