// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import [source...]",
	Short: "Import harvested records, resolving duplicates",
	Long: `Import reads harvested record files from <harvest-dir>/<source>/*.yaml and
writes them to the record store. Each source is imported by its own worker;
at most harvest.workers sources run at once.

For every record, duplicates sharing its identifier are looked up. The record
is accepted if it is newer than every duplicate (or, without timestamps, if
its source has a higher priority), and losing duplicates are retired.

With no arguments, every configured source is imported. Import exits with an
error if any record failed.`,
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		viper.Set("harvest.workers", workers)
	}
	if rps, _ := cmd.Flags().GetFloat64("rate"); rps > 0 {
		viper.Set("harvest.records_per_second", rps)
	}

	p, err := openPipeline(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer p.Close()

	sourceIDs := args
	if len(sourceIDs) == 0 {
		sourceIDs = p.cfg.SourceIDs()
	}
	if len(sourceIDs) == 0 {
		return fmt.Errorf("no sources to import: list them as arguments or under sources: in the config file")
	}
	configured := p.cfg.SourceIDs()
	for _, id := range sourceIDs {
		if !slices.Contains(configured, id) {
			slog.Warn("source is not configured, using default priority", "source", id)
		}
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		srv := serveMetrics(addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	summary, err := p.driver.ImportSources(ctx, sourceIDs)
	if err != nil {
		return fmt.Errorf("import stopped after %d record(s): %w", summary.Total(), err)
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d record(s) failed to import", summary.Failed)
	}
	return nil
}

// serveMetrics exposes Prometheus metrics on addr until shut down.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

func init() {
	importCmd.Flags().Int("workers", 0, "sources imported concurrently (0 = use config)")
	importCmd.Flags().Float64("rate", 0, "records per second per worker (0 = use config)")
	importCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while importing (e.g. :9090)")

	rootCmd.AddCommand(importCmd)
}
