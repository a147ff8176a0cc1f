package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yinqiwen/ardb/codec"
	"github.com/yinqiwen/ardb/data"
	"github.com/yinqiwen/ardb/engine"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact <namespace>",
		Short: "Run a manual compaction over one namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(args[0])
		},
	}
}

func runCompact(ns string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := engine.NewContext()
	nsVal := data.String([]byte(ns), true)
	start := codec.KeyObject{NS: nsVal}
	// A key built from a run of 0xFF bytes and the highest type tag sorts
	// after any real record with a key shorter than this sentinel, which
	// covers ordinary key sizes; it bounds the compaction to (effectively)
	// the whole namespace rather than one point.
	end := codec.KeyObject{NS: nsVal, Key: data.String([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, true), Type: codec.KeyType(0xff)}
	if err := eng.Compact(ctx, start, end); err != nil {
		return fmt.Errorf("compact %s: %w", ns, err)
	}
	fmt.Printf("compacted namespace %q\n", ns)
	return nil
}
