// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("harvest-reconcile.ingest")

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_reconcile_records_total",
		Help: "Harvested records processed, by source and outcome",
	}, []string{"source", "outcome"})

	sourceImportSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_reconcile_source_import_seconds",
		Help:    "Wall time to import one harvest source",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"source"})
)
