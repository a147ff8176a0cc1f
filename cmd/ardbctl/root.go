// Command ardbctl is the operator-facing CLI over engine/enginepebble —
// the equivalent of pebble's own cmd/pebble tool, scoped to this repo's
// engine.Options rather than a full Redis server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yinqiwen/ardb/engine"
	"github.com/yinqiwen/ardb/engine/enginepebble"
)

var (
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "ardbctl",
	Short:   "Inspect and operate on an ardb storage directory",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "storage root directory (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	_ = rootCmd.MarkPersistentFlagRequired("dir")

	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newCompactCmd())
	rootCmd.AddCommand(newNamespacesCmd())
	rootCmd.AddCommand(newDumpCmd())
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ardbctl:", err)
		os.Exit(1)
	}
}

// openEngine opens the storage root at dataDir without creating it — every
// subcommand here operates on an existing store, it never provisions one.
func openEngine() (*enginepebble.Engine, error) {
	eng := enginepebble.New(engine.NewDefaultLogger(), nil)
	opts := engine.DefaultOptions()
	opts.CreateIfMissing = false
	if err := eng.Init(dataDir, opts); err != nil {
		return nil, fmt.Errorf("open %s: %w", dataDir, err)
	}
	return eng, nil
}
