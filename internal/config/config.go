// Package config loads thunkgraph's run configuration: default dispatch
// concurrency, a proclist setting (loaded, not applied), plugin manifest
// discovery root, the metrics server bind address, and the log level. Values come from (in
// increasing priority) thunkgraph.yaml, environment variables, and
// cobra flags, wired the way cmd/divinesense/main.go binds viper to
// cobra persistent flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys are the viper keys this package reads and binds flags/env against.
const (
	KeyConcurrency = "concurrency"
	KeyProclist    = "proclist"
	KeyPluginRoot  = "plugin-root"
	KeyMetricsAddr = "metrics-addr"
	KeyLogLevel    = "log-level"
)

// Config is the resolved run configuration for a single thunkgraph
// invocation.
type Config struct {
	// Concurrency bounds the number of thunks dispatched to in-process
	// processors at once, absent a more specific per-processor limit.
	Concurrency int

	// Proclist is the configured list of processor kinds. It is loaded
	// from file and env but not applied: no thunk's proclist is set from
	// it, and no cobra flag is bound to it.
	Proclist []string

	// PluginRoot is the filesystem root processor.Discover walks for
	// on-disk plugin manifests.
	PluginRoot string

	// MetricsAddr is the bind address `thunkgraph serve-metrics` listens
	// on, e.g. ":9090".
	MetricsAddr string

	// LogLevel is a zerolog level name: debug, info, warn, error.
	LogLevel string
}

// Defaults applied before flags, env, or config file are consulted.
func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyConcurrency, 4)
	v.SetDefault(KeyProclist, []string{})
	v.SetDefault(KeyPluginRoot, "./plugins")
	v.SetDefault(KeyMetricsAddr, ":9090")
	v.SetDefault(KeyLogLevel, "info")
}

// New builds a viper.Viper pre-loaded with thunkgraph's defaults, env
// binding (THUNKGRAPH_ prefix, "-" and "." folded to "_"), and an optional
// thunkgraph.yaml search path. Callers bind cobra flags on top via
// viper's BindPFlag before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("thunkgraph")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("THUNKGRAPH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	return v
}

// Load reads whatever config file is present (a missing file is not an
// error; a malformed one is) and materializes the resolved Config.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	cfg := Config{
		Concurrency: v.GetInt(KeyConcurrency),
		Proclist:    v.GetStringSlice(KeyProclist),
		PluginRoot:  v.GetString(KeyPluginRoot),
		MetricsAddr: v.GetString(KeyMetricsAddr),
		LogLevel:    v.GetString(KeyLogLevel),
	}
	if cfg.Concurrency < 1 {
		return Config{}, fmt.Errorf("config: %s must be >= 1, got %d", KeyConcurrency, cfg.Concurrency)
	}
	return cfg, nil
}
