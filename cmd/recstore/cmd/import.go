/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordstore/pkg/sales"
	"github.com/ssargent/recordstore/pkg/session"
	"github.com/ssargent/recordstore/pkg/store"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "Import a sales export into the store",
	Long: `Import a sales CSV export. Each row describes one product and the
reviews left on it; one Sale record is written per review.

The whole file is written as a single batch so the user name ids stored
in the records match the trie file written with them.

Example:
  recstore import amazon.csv
  recstore import --mode=create amazon.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}

		mode, err := e.config.Mode()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mode") {
			flag, _ := cmd.Flags().GetString("mode")
			if mode, err = session.ParseMode(flag); err != nil {
				return err
			}
		}

		n, err := importCSV(e, args[0], mode)
		if err != nil {
			return err
		}
		cmd.Printf("Imported %d sales from %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("mode", "append", "Write mode: append or create")
}

func importCSV(e *env, path string, mode session.Mode) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r, err := sales.NewCSVReader(f, e.logger)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	all, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	if err := store.WriteAllMode(e.store, sales.SaleBinding, all, mode); err != nil {
		return 0, err
	}
	return len(all), nil
}
