/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [type]",
	Short: "Check record files for torn writes",
	Long: `Check the record files of a type and every type it nests. Reports files
whose size is not a whole number of records, records that do not decode
completely, and write batches the journal never saw commit.

Example:
  recstore verify
  recstore verify user`,
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

		result, err := e.store.Verify(sc)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "FILE\tSIZE\tWIDTH\tRECORDS\tTRAILING\n")
		for _, f := range result.Files {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", f.Name, f.Size, f.Width, f.Records, f.Trailing)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		cmd.Printf("Decoded %d %s records", result.Decoded, sc.Name)
		if result.Truncated {
			cmd.Printf(" (stopped at an incomplete record)")
		}
		cmd.Printf("\n")
		for _, b := range result.Pending {
			cmd.Printf("Pending batch %s: %s %s from offset %d, started %s\n",
				b.ID, b.Mode, b.Type, b.StartSize, b.Started.Format(time.RFC3339))
		}

		if !result.OK() {
			return fmt.Errorf("%s needs recovery, run recstore recover", sc.Name)
		}
		cmd.Printf("OK\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
