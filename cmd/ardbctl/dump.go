package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ghemawat/stream"
	"github.com/spf13/cobra"
	"github.com/yinqiwen/ardb/codec"
	"github.com/yinqiwen/ardb/data"
	"github.com/yinqiwen/ardb/engine"
)

var (
	dumpLimit int
	dumpGrep  string
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <namespace>",
		Short: "Print every record in a namespace as key/value lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0])
		},
	}
	cmd.Flags().IntVar(&dumpLimit, "limit", 1000, "maximum number of records to print (0 = unlimited)")
	cmd.Flags().StringVar(&dumpGrep, "grep", "", "only print lines matching this regexp")
	return cmd
}

func runDump(ns string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := engine.NewContext()
	it, err := eng.Find(ctx, codec.KeyObject{NS: data.String([]byte(ns), true)})
	if err != nil {
		return fmt.Errorf("find %s: %w", ns, err)
	}
	defer it.Close()

	var buf bytes.Buffer
	printed := 0
	for it.JumpToFirst(); it.Valid(); it.Next() {
		if dumpLimit > 0 && printed >= dumpLimit {
			fmt.Fprintf(&buf, "... truncated at %d records\n", dumpLimit)
			break
		}
		key, err := it.Key(false)
		if err != nil {
			fmt.Fprintf(&buf, "<corrupt key: %v>\n", err)
			continue
		}
		val, err := it.Value(false)
		if err != nil {
			fmt.Fprintf(&buf, "<corrupt value for key type=%d: %v>\n", key.Type, err)
			continue
		}
		fmt.Fprintf(&buf, "%s type=%d elements=%v vals=%v\n", key.Key.Bytes(), key.Type, formatValues(key.Elements), formatValues(val.Vals))
		printed++
	}

	// Reuse the same line-filter idiom the underlying store's own dump
	// tooling composes from; the Grep stage is only added when --grep is
	// set.
	filters := []stream.Filter{stream.Lines(&buf)}
	if dumpGrep != "" {
		filters = append(filters, stream.Grep(dumpGrep))
	}
	filters = append(filters, stream.WriteLines(os.Stdout))
	return stream.Run(filters...)
}

func formatValues(vals []data.Value) []string {
	out := make([]string, len(vals))
	for i := range vals {
		v := vals[i]
		switch v.Kind() {
		case data.KindNil:
			out[i] = "nil"
		case data.KindInt:
			out[i] = fmt.Sprintf("%d", v.Int())
		case data.KindFloat:
			out[i] = fmt.Sprintf("%g", v.Float())
		case data.KindString:
			out[i] = string(v.Bytes())
		}
	}
	return out
}
