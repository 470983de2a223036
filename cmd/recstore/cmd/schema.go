/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema [type]",
	Short: "Describe the on-disk layout of a record type",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		sc, err := schemaArg(args)
		if err != nil {
			return err
		}

		cmd.Printf("%s (%d bytes per record, file %s)\n", sc.Name, sc.Width(), sc.FileName())
		for _, line := range sc.Describe() {
			cmd.Printf("  %s\n", line)
		}

		st, err := e.store.Stats(sc)
		if err != nil {
			return err
		}
		cmd.Printf("%d records stored", st.Records)
		if st.TrailingBytes > 0 {
			cmd.Printf(", %d trailing bytes", st.TrailingBytes)
		}
		if st.PendingWrites > 0 {
			cmd.Printf(", %d pending batches", st.PendingWrites)
		}
		cmd.Printf("\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
