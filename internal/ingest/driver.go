// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest imports harvested records into the record store, resolving
// duplicates on the way in.
//
// A Driver handles one record at a time: resolve, retire the losers, then
// write the incoming record if it won. ImportBatch and ImportSources run the
// driver over harvested record files, one worker per source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pdiddy/harvest-reconcile/internal/reconcile"
	"github.com/pdiddy/harvest-reconcile/internal/store"
	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// RecordStore is the store surface the driver needs.
type RecordStore interface {
	reconcile.DuplicateFinder
	reconcile.RecordMutator
	Fetch(ctx context.Context, storeID string) (types.LocalRecord, error)
	FindByGUID(ctx context.Context, guid string) (types.LocalRecord, error)
	Create(ctx context.Context, rec types.IncomingRecord) (types.LocalRecord, error)
	Update(ctx context.Context, storeID string, rec types.IncomingRecord) (types.LocalRecord, error)
	CheckName(name string) error
}

// Result is what happened to one incoming record.
type Result struct {
	Outcome types.Outcome

	// Retired lists the store ids retired while importing the record.
	Retired []string

	// Record is the written record. It is zero unless Outcome is accepted.
	Record types.LocalRecord

	// Updated reports whether an earlier version of the record was
	// overwritten in place rather than a new one created.
	Updated bool
}

// Driver imports incoming records one at a time.
type Driver struct {
	store    RecordStore
	resolver *reconcile.Resolver
	replacer *reconcile.Replacer
	harvest  types.HarvestConfig
	out      *syncWriter
	logger   *slog.Logger
}

// NewDriver wires a driver over st. Status lines go to w; a nil logger uses
// slog.Default().
func NewDriver(st RecordStore, priorities reconcile.PriorityLookup, cfg types.PipelineConfig, w io.Writer, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if w == nil {
		w = io.Discard
	}
	return &Driver{
		store:    st,
		resolver: reconcile.NewResolver(st, priorities, logger),
		replacer: reconcile.NewReplacer(st, cfg.Store.MaxNameLength, logger),
		harvest:  cfg.Harvest,
		out:      &syncWriter{w: w},
		logger:   logger,
	}
}

// ImportRecord resolves incoming against the store, retires whatever the
// verdict says, and writes incoming if it was accepted.
func (d *Driver) ImportRecord(ctx context.Context, incoming types.IncomingRecord) (types.Outcome, error) {
	res, err := d.Import(ctx, incoming)
	return res.Outcome, err
}

// Import is ImportRecord with the full result.
func (d *Driver) Import(ctx context.Context, incoming types.IncomingRecord) (Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.ImportRecord")
	defer span.End()
	span.SetAttributes(
		attribute.String("record.name", incoming.Name),
		attribute.String("record.source", incoming.SourceID),
	)

	res, err := d.importRecord(ctx, incoming)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "import failed")
		res.Outcome = types.OutcomeFailed
		d.out.printf("failed   %s: %v\n", incoming.Name, err)
	}
	recordsTotal.WithLabelValues(incoming.SourceID, string(res.Outcome)).Inc()
	return res, err
}

func (d *Driver) importRecord(ctx context.Context, incoming types.IncomingRecord) (Result, error) {
	verdict, err := d.resolver.Resolve(ctx, incoming)
	if err != nil {
		return Result{}, err
	}

	// Nothing is retired for a record the store would refuse.
	if verdict.Accept {
		if err := d.store.CheckName(incoming.Name); err != nil {
			return Result{}, fmt.Errorf("record %q cannot be written: %w", incoming.Name, err)
		}
	}

	res := Result{Outcome: verdict.Outcome}
	if len(verdict.Retire) > 0 {
		res.Retired = d.replacer.Retire(ctx, verdict.Retire)
		if missed := len(verdict.Retire) - len(res.Retired); missed > 0 {
			d.out.printf("warning: %s: %d of %d duplicates could not be retired\n",
				incoming.Name, missed, len(verdict.Retire))
		}
	}

	if !verdict.Accept {
		d.out.printf("%s %s (source %s)\n", verdict.Outcome, incoming.Name, incoming.SourceID)
		return res, nil
	}

	rec, updated, err := d.write(ctx, incoming)
	if err != nil {
		return res, err
	}
	res.Record, res.Updated = rec, updated

	verb := "accepted"
	if updated {
		verb = "updated "
	}
	if n := len(res.Retired); n > 0 {
		d.out.printf("%s %s (source %s, retired %d)\n", verb, rec.Name, incoming.SourceID, n)
	} else {
		d.out.printf("%s %s (source %s)\n", verb, rec.Name, incoming.SourceID)
	}
	return res, nil
}

// write updates the live record previously harvested under the same GUID,
// or creates a new one.
func (d *Driver) write(ctx context.Context, incoming types.IncomingRecord) (types.LocalRecord, bool, error) {
	prev, err := d.store.FindByGUID(ctx, incoming.GUID)
	switch {
	case err == nil:
		rec, err := d.store.Update(ctx, prev.StoreID, incoming)
		if err != nil {
			return types.LocalRecord{}, false, fmt.Errorf("updating record %q: %w", incoming.Name, err)
		}
		return rec, true, nil
	case errors.Is(err, store.ErrNotFound):
		rec, err := d.store.Create(ctx, incoming)
		if err != nil {
			return types.LocalRecord{}, false, fmt.Errorf("creating record %q: %w", incoming.Name, err)
		}
		return rec, false, nil
	default:
		return types.LocalRecord{}, false, fmt.Errorf("looking up guid %q: %w", incoming.GUID, err)
	}
}

// Resolve returns the verdict for incoming without acting on it.
func (d *Driver) Resolve(ctx context.Context, incoming types.IncomingRecord) (types.Verdict, error) {
	return d.resolver.Resolve(ctx, incoming)
}

// Retire retires live records by store id with the rename-then-delete
// protocol. Unknown ids are reported and skipped. It returns the ids that
// were retired.
func (d *Driver) Retire(ctx context.Context, storeIDs []string) ([]string, error) {
	var recs []types.LocalRecord
	for _, id := range storeIDs {
		rec, err := d.store.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				d.out.printf("skipped  %s (no live record)\n", id)
				continue
			}
			return nil, fmt.Errorf("fetching %s: %w", id, err)
		}
		recs = append(recs, rec)
	}

	retired := d.replacer.Retire(ctx, recs)
	done := make(map[string]bool, len(retired))
	for _, id := range retired {
		done[id] = true
	}
	for _, rec := range recs {
		if done[rec.StoreID] {
			d.out.printf("retired  %s (%s)\n", rec.StoreID, rec.Name)
		} else {
			d.out.printf("failed   %s (%s)\n", rec.StoreID, rec.Name)
		}
	}
	return retired, nil
}

// syncWriter serializes status lines from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
