/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/recordstore/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file and data directory",
	Long: `Create a configuration file and data directory for recstore.

This command will:
- Write a default configuration file pointing at the data directory
- Create the data directory

Examples:
	  recstore init --data-dir=./data
	  recstore init --config=./recstore.yaml --data-dir=/srv/records --force`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		if dataDir == "" {
			dataDir = "./data"
		}

		cfg, err := initializeConfig(configPath, dataDir, force)
		if err != nil {
			return err
		}

		cmd.Printf("✅ recstore initialized\n")
		cmd.Printf("Configuration: %s\n", configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("\nImport a sales export with:\n")
		cmd.Printf("  recstore import --config=%s amazon.csv\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
}

// initializeConfig writes the configuration file and creates the data directory.
func initializeConfig(configPath, dataDir string, force bool) (*config.Config, error) {
	if config.ConfigExists(configPath) && !force {
		return nil, fmt.Errorf("configuration already exists at %s, use --force to overwrite", configPath)
	}

	cfg, err := config.BootstrapConfig(configPath, dataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}
