/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// recoverCmd represents the recover command
var recoverCmd = &cobra.Command{
	Use:   "recover [type]",
	Short: "Truncate record files back to the last complete record",
	Long: `Repair the record files of a type after an interrupted write. Partial
trailing records are removed and open journal batches are closed out.

Example:
  recstore recover`,
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

		result, err := e.store.Recover(sc)
		if err != nil {
			return err
		}

		for _, f := range result.Files {
			cmd.Printf("Truncated %s: %d -> %d bytes\n", f.Name, f.SizeBefore, f.SizeAfter)
		}
		for _, id := range result.BatchesRecovered {
			cmd.Printf("Closed batch %s\n", id)
		}
		cmd.Printf("%d %s records intact, %d bytes removed in %s\n",
			result.RecordsValidated, sc.Name, result.BytesTruncated, time.Duration(result.RecoveryTime))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
