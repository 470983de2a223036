/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/recordstore/pkg/schema"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "Print the records of a type",
	Long: `Print the records of one record type in file order. The type defaults
to Sale; Review, Product and User can be listed on their own.

Example:
  recstore list
  recstore list user --limit=10
  recstore list product --format=yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		sc, err := schemaArg(args)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		it, err := e.store.Read(sc)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var werr error
		for it.Next() {
			if limit > 0 && it.Count() > limit {
				break
			}
			if werr = printRecord(out, format, it.Count()-1, it.Record()); werr != nil {
				break
			}
		}
		truncated := it.Truncated()
		if err := multierr.Combine(werr, it.Err(), it.Close()); err != nil {
			return err
		}
		if truncated {
			cmd.PrintErrf("warning: %s.bin ends with an incomplete record, run recstore verify\n", sc.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Int("limit", 0, "Maximum number of records to print (0 = all)")
	listCmd.Flags().String("format", "table", "Output format: table or yaml")
}

func printRecord(w io.Writer, format string, index int, rec schema.Record) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal([]schema.Record{rec})
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "#%d\n", index)
		writeFields(tw, "", rec)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeFields(w io.Writer, prefix string, rec schema.Record) {
	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if nested, ok := rec[name].(schema.Record); ok {
			writeFields(w, prefix+name+".", nested)
			continue
		}
		fmt.Fprintf(w, "  %s%s:\t%v\n", prefix, name, rec[name])
	}
}
