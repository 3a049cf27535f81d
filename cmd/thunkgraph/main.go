package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"thunkgraph/internal/cliapp"
	"thunkgraph/internal/config"
)

var v = config.New()

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
}

var rootCmd = &cobra.Command{
	Use:   "thunkgraph",
	Short: "Run and inspect thunkgraph compute graphs.",
}

var computeCmd = &cobra.Command{
	Use:   "compute [graph.json]",
	Short: "Run a submitted graph document to completion.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		log := newLogger(cfg.LogLevel)

		in := os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("thunkgraph: open graph document: %w", err)
			}
			defer f.Close()
			in = f
		}

		reg := prometheus.NewRegistry()
		res, err := cliapp.Compute(cmd.Context(), in, cliapp.ComputeOptions{
			Cfg:        cfg,
			Log:        log,
			Registerer: reg,
		})
		if err != nil {
			return err
		}
		if err := cliapp.WriteJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if len(res.Errors) > 0 {
			return fmt.Errorf("thunkgraph: %d root(s) failed", len(res.Errors))
		}
		return nil
	},
}

var processorsCmd = &cobra.Command{
	Use:   "processors",
	Short: "List discovered processor plugin manifests and registered builtin functions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return cliapp.ListProcessors(cmd.OutOrStdout(), cfg.PluginRoot, newLogger(cfg.LogLevel))
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve a fresh, empty Prometheus registry over HTTP until interrupted (no scheduler runs in this command).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		reg := prometheus.NewRegistry()
		return cliapp.ServeMetrics(cmd.Context(), cfg.MetricsAddr, reg, newLogger(cfg.LogLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().Int("concurrency", 4, "default dispatch concurrency per processor")
	rootCmd.PersistentFlags().String("plugin-root", "./plugins", "processor manifest discovery root")
	rootCmd.PersistentFlags().String("metrics-addr", ":9090", "metrics server bind address")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	bind := func(key string) {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
	}
	bind(config.KeyConcurrency)
	bind(config.KeyPluginRoot)
	bind(config.KeyMetricsAddr)
	bind(config.KeyLogLevel)

	rootCmd.AddCommand(computeCmd, processorsCmd, serveMetricsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
