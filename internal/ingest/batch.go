// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// Summary counts the outcomes of an import run.
type Summary struct {
	Accepted      int
	Superseded    int
	Stale         int
	EqualPriority int
	Failed        int

	// Retired counts local records retired along the way.
	Retired int
}

// Total returns the number of records processed.
func (s Summary) Total() int {
	return s.Accepted + s.Superseded + s.Stale + s.EqualPriority + s.Failed
}

// Rejected returns the number of records that lost to a local copy.
func (s Summary) Rejected() int {
	return s.Superseded + s.Stale + s.EqualPriority
}

// HasFailures reports whether any record failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Merge adds the counts of o to s.
func (s *Summary) Merge(o Summary) {
	s.Accepted += o.Accepted
	s.Superseded += o.Superseded
	s.Stale += o.Stale
	s.EqualPriority += o.EqualPriority
	s.Failed += o.Failed
	s.Retired += o.Retired
}

func (s *Summary) record(res Result) {
	switch res.Outcome {
	case types.OutcomeAccepted:
		s.Accepted++
	case types.OutcomeRejectedSuperseded:
		s.Superseded++
	case types.OutcomeRejectedStale:
		s.Stale++
	case types.OutcomeRejectedEqualPriority:
		s.EqualPriority++
	default:
		s.Failed++
	}
	s.Retired += len(res.Retired)
}

func (s Summary) String() string {
	return fmt.Sprintf("accepted: %d, superseded: %d, stale: %d, equal priority: %d, failed: %d, retired: %d",
		s.Accepted, s.Superseded, s.Stale, s.EqualPriority, s.Failed, s.Retired)
}

// ImportBatch imports records sequentially. A failed record is reported and
// counted, and the batch carries on. Cancelling ctx stops the batch between
// records; the partial summary is returned with the context's error.
func (d *Driver) ImportBatch(ctx context.Context, records []types.IncomingRecord) (Summary, error) {
	var summary Summary
	limiter := d.limiter()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}

		res, err := d.Import(ctx, rec)
		if err != nil {
			d.logger.Error("importing record failed",
				"name", rec.Name, "source", rec.SourceID, "identifier", rec.Identifier, "error", err)
		}
		summary.record(res)
	}
	return summary, nil
}

// ImportSources imports the harvested records of every listed source, one
// worker per source, at most harvest.workers at a time. Per-record and
// per-file failures are counted in the summary; the error is only set when
// the run was cancelled or timed out.
func (d *Driver) ImportSources(ctx context.Context, sourceIDs []string) (Summary, error) {
	if d.harvest.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.harvest.Timeout)
		defer cancel()
	}

	var (
		mu    sync.Mutex
		total Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.harvest.Workers, 1))

	for _, id := range sourceIDs {
		id := id
		g.Go(func() error {
			summary, err := d.importSource(gctx, id)
			mu.Lock()
			total.Merge(summary)
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	d.out.printf("\n%s\n", total)
	return total, err
}

func (d *Driver) importSource(ctx context.Context, sourceID string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "ingest.ImportSource")
	defer span.End()
	span.SetAttributes(attribute.String("source", sourceID))
	start := time.Now()
	defer func() { sourceImportSeconds.WithLabelValues(sourceID).Observe(time.Since(start).Seconds()) }()

	records, failures, err := LoadSource(d.harvest.Dir, sourceID, d.logger)
	if err != nil {
		d.out.printf("failed   source %s: %v\n", sourceID, err)
		d.logger.Error("loading source failed", "source", sourceID, "error", err)
		return Summary{Failed: 1}, nil
	}

	var summary Summary
	for _, f := range failures {
		d.out.printf("failed   %v\n", f)
		d.logger.Error("parsing record file failed", "source", sourceID, "path", f.Path, "error", f.Err)
		summary.Failed++
	}

	d.logger.Info("importing source", "source", sourceID, "records", len(records))
	batch, err := d.ImportBatch(ctx, records)
	summary.Merge(batch)
	span.SetAttributes(attribute.Int("records", len(records)), attribute.Int("failed", summary.Failed))
	return summary, err
}

// limiter returns a fresh per-worker pacer, or nil when pacing is off.
func (d *Driver) limiter() *rate.Limiter {
	if d.harvest.RecordsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(d.harvest.RecordsPerSecond), 1)
}
