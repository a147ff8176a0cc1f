package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/yinqiwen/ardb/engine"
)

func newNamespacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List every namespace (column-family-equivalent) in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNamespaces()
		},
	}
}

func runNamespaces() error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := engine.NewContext()
	names, err := eng.ListNameSpaces(ctx)
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"namespace", "estimated keys"})
	for _, ns := range names {
		n, err := eng.EstimateKeysNum(ctx, ns)
		if err != nil {
			return fmt.Errorf("estimate keys for %s: %w", ns.Bytes(), err)
		}
		table.Append([]string{string(ns.Bytes()), fmt.Sprintf("%d", n)})
	}
	table.Render()
	return nil
}
