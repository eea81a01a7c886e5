package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/pdiddy/harvest-reconcile/internal/ingest"
	"github.com/pdiddy/harvest-reconcile/internal/priority"
	"github.com/pdiddy/harvest-reconcile/internal/secrets"
	"github.com/pdiddy/harvest-reconcile/internal/store"
	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// setConfigDefaults registers every config key so that environment
// variables can override keys absent from the config file. A store-dsn
// secret replaces the built-in DSN default.
func setConfigDefaults(v *viper.Viper, s secrets.Secrets) {
	def := types.DefaultPipelineConfig()
	if dsn, ok := s.Lookup(secrets.StoreDSN); ok {
		def.Store.DSN = dsn
	}
	v.SetDefault("store.driver", string(def.Store.Driver))
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("store.max_name_length", def.Store.MaxNameLength)
	v.SetDefault("harvest.dir", def.Harvest.Dir)
	v.SetDefault("harvest.workers", def.Harvest.Workers)
	v.SetDefault("harvest.records_per_second", def.Harvest.RecordsPerSecond)
	v.SetDefault("harvest.timeout", def.Harvest.Timeout)
}

// loadPipelineConfig decodes and validates the configuration held by v.
func loadPipelineConfig(v *viper.Viper) (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.PipelineConfig{}, err
	}
	return cfg, nil
}

// pipeline bundles what every store-touching command opens.
type pipeline struct {
	cfg    types.PipelineConfig
	store  *store.Store
	driver *ingest.Driver
}

func openPipeline(ctx context.Context, w io.Writer) (*pipeline, error) {
	cfg, err := loadPipelineConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	registry := priority.NewRegistry(cfg.Sources, logger)
	return &pipeline{
		cfg:    cfg,
		store:  st,
		driver: ingest.NewDriver(st, registry, cfg, w, logger),
	}, nil
}

func (p *pipeline) Close() error {
	return p.store.Close()
}
