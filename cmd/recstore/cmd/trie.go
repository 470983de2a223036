/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordstore/pkg/patricia"
	"github.com/ssargent/recordstore/pkg/sales"
)

// trieCmd groups the trie file commands
var trieCmd = &cobra.Command{
	Use:   "trie",
	Short: "Inspect and update trie files",
	Long: `Inspect and update the Patricia trie files that intern string fields.
The file defaults to the user name trie.`,
}

var trieRetrieveCmd = &cobra.Command{
	Use:   "retrieve [prefix]",
	Short: "List the keys starting with a prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		keys, err := e.store.Retrieve(trieFile(cmd), prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			cmd.Println(k)
		}
		return nil
	},
}

var trieEncodeCmd = &cobra.Command{
	Use:   "encode <key>",
	Short: "Print the id of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		id, err := e.store.EncodeKey(trieFile(cmd), args[0])
		if err != nil {
			return err
		}
		if id == patricia.NotFound {
			return fmt.Errorf("key %q not found", args[0])
		}
		cmd.Println(id)
		return nil
	},
}

var trieDecodeCmd = &cobra.Command{
	Use:   "decode <id>",
	Short: "Print the key stored under an id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		key, ok, err := e.store.DecodeKey(trieFile(cmd), id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("id %d not found", id)
		}
		cmd.Println(key)
		return nil
	},
}

var trieDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the trie structure",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		out, err := e.store.DumpTrie(trieFile(cmd))
		if err != nil {
			return err
		}
		cmd.Print(out)
		return nil
	},
}

var trieMergeCmd = &cobra.Command{
	Use:   "merge <source>",
	Short: "Merge the keys of another trie file",
	Long: `Merge the keys of a serialized trie file into the selected trie file.

Adding keys renumbers the trie, which invalidates ids already stored in
records that reference it. Merge only into tries whose records will be
rewritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := envFrom(cmd)
		if err != nil {
			return err
		}
		added, err := e.store.MergeTrie(trieFile(cmd), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Merged %s into %s: %d new keys\n", args[0], trieFile(cmd), added)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trieCmd)
	trieCmd.AddCommand(trieRetrieveCmd, trieEncodeCmd, trieDecodeCmd, trieDumpCmd, trieMergeCmd)

	trieCmd.PersistentFlags().String("file", sales.UserNamesFile, "Trie file inside the data directory")
}

func trieFile(cmd *cobra.Command) string {
	name, _ := cmd.Flags().GetString("file")
	return name
}
