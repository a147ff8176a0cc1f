package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/yinqiwen/ardb/data"
	"github.com/yinqiwen/ardb/engine"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-namespace pebble metrics and estimated key counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func runStats() error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := engine.NewContext()
	fmt.Println(eng.Stats(ctx))

	names, err := eng.ListNameSpaces(ctx)
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}
	sorted := make([]string, 0, len(names))
	for _, ns := range names {
		sorted = append(sorted, string(ns.Bytes()))
	}
	sort.Strings(sorted)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"namespace", "estimated keys"})
	counts := make([]float64, 0, len(sorted))
	for _, ns := range sorted {
		n, err := eng.EstimateKeysNum(ctx, data.String([]byte(ns), true))
		if err != nil {
			return fmt.Errorf("estimate keys for %s: %w", ns, err)
		}
		table.Append([]string{ns, fmt.Sprintf("%d", n)})
		counts = append(counts, float64(n))
	}
	table.Render()

	// A quick visual sense of relative namespace size, when there's more
	// than one namespace to compare.
	if len(counts) > 1 {
		fmt.Println(asciigraph.Plot(counts, asciigraph.Height(8), asciigraph.Caption("estimated keys by namespace (sorted by name)")))
	}
	return nil
}
