// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the harvest-reconcile CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/harvest-reconcile/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the harvest-reconcile CLI.
var rootCmd = &cobra.Command{
	Use:   "harvest-reconcile",
	Short: "Import harvested dataset records without duplicating them",
	Long: `harvest-reconcile imports dataset records collected by harvesters into a
record store. When several sources publish the same dataset (same identifier),
only one copy is kept: the one with the newest source timestamp, or, when no
timestamps are available, the one from the higher-priority source.

Losing copies are retired by renaming them out of the way before deleting
them, so their names never block the winner.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logger, err := newLogger(os.Stderr, level, format)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./harvest-reconcile.yaml or ~/.config/harvest-reconcile/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("store-driver", "", "record store driver: sqlite3 or postgres (overrides config)")
	rootCmd.PersistentFlags().String("store-dsn", "", "record store data source name (overrides config)")
	rootCmd.PersistentFlags().String("harvest-dir", "", "directory of harvested records, one subdirectory per source (overrides config)")

	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("store-dsn"))
	_ = viper.BindPFlag("harvest.dir", rootCmd.PersistentFlags().Lookup("harvest-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("harvest-reconcile")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "harvest-reconcile"))
		}
	}

	viper.SetEnvPrefix("HARVEST_RECONCILE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Secrets only supply defaults; the config file, environment and flags
	// still win.
	s, err := secrets.Load(secrets.DefaultDir, slog.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	} else if len(s) > 0 {
		keys := s.Keys()
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
	}
	setConfigDefaults(viper.GetViper(), s)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the --log-level and
// --log-format flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported --log-format %q: use text or json", format)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
