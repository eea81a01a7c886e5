// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("harvest-reconcile.reconcile")

var (
	// verdictsTotal counts resolver decisions by outcome.
	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_reconcile_verdicts_total",
		Help: "Resolver verdicts by outcome",
	}, []string{"outcome"})

	// retirementsTotal counts retirement attempts by result
	// (retired, rename_failed, remove_failed).
	retirementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_reconcile_retirements_total",
		Help: "Record retirement attempts by result",
	}, []string{"result"})
)
