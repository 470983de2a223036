/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/config"
	"github.com/ssargent/recordstore/pkg/metrics"
	"github.com/ssargent/recordstore/pkg/sales"
	"github.com/ssargent/recordstore/pkg/schema"
	"github.com/ssargent/recordstore/pkg/store"
)

type envKey struct{}

// env is what every store command works with
type env struct {
	config   *config.Config
	logger   *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recstore",
	Short: "recstore - schema-driven binary record store",
	Long: `recstore writes typed records to fixed-width binary files, with long
strings kept in append-only blob files and repeated strings interned in
persistent Patricia tries.`,
	SilenceUsage:      true,
	PersistentPreRunE: openEnv,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeEnv(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory (overrides the configuration file)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration file when present and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := config.DefaultConfig()
	if configPath != "" && config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openEnv(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	storeCfg, err := store.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	e := &env{config: cfg, logger: logger}
	if cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		storeCfg.Metrics = metrics.New(e.registry)
	}

	st, err := store.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	e.store = st

	cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))
	return nil
}

func closeEnv(cmd *cobra.Command) error {
	e, ok := cmd.Context().Value(envKey{}).(*env)
	if !ok {
		return nil
	}

	var err error
	if e.registry != nil {
		err = multierr.Append(err, dumpMetrics(cmd, e.registry))
	}
	err = multierr.Append(err, e.store.Close())
	_ = e.logger.Sync()
	return err
}

// dumpMetrics prints the collected metrics in the Prometheus text format
func dumpMetrics(cmd *cobra.Command, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return err
		}
	}
	return nil
}

func envFrom(cmd *cobra.Command) (*env, error) {
	e, ok := cmd.Context().Value(envKey{}).(*env)
	if !ok {
		return nil, fmt.Errorf("store not found in context")
	}
	return e, nil
}

// schemaArg resolves the optional record type argument, defaulting to Sale
func schemaArg(args []string) (*schema.Schema, error) {
	if len(args) == 0 {
		return sales.SaleSchema, nil
	}
	s, ok := sales.Lookup(args[0])
	if !ok {
		return nil, fmt.Errorf("unknown record type %q", args[0])
	}
	return s, nil
}
