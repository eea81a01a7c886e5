// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile decides which copy of a dataset wins when the same
// identifier arrives from more than one harvest, and retires the losers.
//
// Resolver compares an incoming record against the live duplicates in the
// store: business timestamps first, source priority only when neither side
// has one. Replacer retires losing records by renaming them out of the way
// before deleting them, so a retired record never blocks its name and a
// stale name lookup never lands on an unrelated record.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// DuplicateFinder looks up live records sharing an identifier. Records whose
// GUID equals excludeGUID are previous versions of the incoming record and
// must not be returned.
type DuplicateFinder interface {
	Find(ctx context.Context, identifier, excludeGUID string) ([]types.LocalRecord, error)
}

// PriorityLookup ranks harvest sources. It must not fail.
type PriorityLookup interface {
	PriorityOf(sourceID string) int
}

// Resolver decides accept or reject for incoming records.
type Resolver struct {
	finder     DuplicateFinder
	priorities PriorityLookup
	logger     *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default().
func NewResolver(finder DuplicateFinder, priorities PriorityLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{finder: finder, priorities: priorities, logger: logger}
}

// Resolve returns the verdict for incoming. Only a failing duplicate lookup
// produces an error; it is returned as is, without retry.
func (r *Resolver) Resolve(ctx context.Context, incoming types.IncomingRecord) (types.Verdict, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("record.identifier", incoming.Identifier),
		attribute.String("record.source", incoming.SourceID),
	)

	verdict, err := r.resolve(ctx, incoming)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "duplicate lookup failed")
		return types.Verdict{}, err
	}

	span.SetAttributes(
		attribute.String("verdict.outcome", string(verdict.Outcome)),
		attribute.Int("verdict.retire", len(verdict.Retire)),
	)
	verdictsTotal.WithLabelValues(string(verdict.Outcome)).Inc()
	return verdict, nil
}

func (r *Resolver) resolve(ctx context.Context, incoming types.IncomingRecord) (types.Verdict, error) {
	if !incoming.HasIdentifier() {
		return accept(nil), nil
	}

	dups, err := r.finder.Find(ctx, incoming.Identifier, incoming.GUID)
	if err != nil {
		return types.Verdict{}, fmt.Errorf("looking up duplicates of %q: %w", incoming.Identifier, err)
	}
	if len(dups) == 0 {
		return accept(nil), nil
	}

	anyLocalHasModified := false
	remoteIsLatest := incoming.Modified != nil
	latestLocal := -1

	for i, local := range dups {
		if local.Modified == nil {
			continue
		}
		anyLocalHasModified = true
		if incoming.Modified != nil {
			remoteIsLatest = remoteIsLatest && incoming.Modified.After(*local.Modified)
		}
		if latestLocal < 0 || local.Modified.After(*dups[latestLocal].Modified) {
			latestLocal = i
		}
	}

	if remoteIsLatest {
		r.logger.Debug("incoming record is newer than every duplicate",
			"identifier", incoming.Identifier, "source", incoming.SourceID, "retire", len(dups))
		return accept(dups), nil
	}

	if anyLocalHasModified {
		r.logger.Debug("incoming record is stale",
			"identifier", incoming.Identifier, "source", incoming.SourceID,
			"survivor", dups[latestLocal].StoreID)
		return reject(types.OutcomeRejectedStale, dups, latestLocal), nil
	}

	// No timestamps on either side: fall back to source priority.
	incumbent := latestBookkept(dups)
	localPriority := r.priorities.PriorityOf(dups[incumbent].SourceID)
	remotePriority := r.priorities.PriorityOf(incoming.SourceID)

	r.logger.Debug("comparing source priorities",
		"identifier", incoming.Identifier,
		"source", incoming.SourceID, "remote_priority", remotePriority,
		"incumbent", dups[incumbent].StoreID, "local_priority", localPriority)

	switch {
	case remotePriority > localPriority:
		return accept(dups), nil
	case remotePriority < localPriority:
		return reject(types.OutcomeRejectedSuperseded, dups, incumbent), nil
	default:
		return reject(types.OutcomeRejectedEqualPriority, dups, incumbent), nil
	}
}

// latestBookkept returns the index of the record the store touched last.
// The first record wins ties. Records left behind by an interrupted
// retirement only win when nothing else is live.
func latestBookkept(dups []types.LocalRecord) int {
	best := -1
	for i, d := range dups {
		if IsRetiredName(d.Name) {
			continue
		}
		if best < 0 || d.MetadataModified.After(dups[best].MetadataModified) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	best = 0
	for i := 1; i < len(dups); i++ {
		if dups[i].MetadataModified.After(dups[best].MetadataModified) {
			best = i
		}
	}
	return best
}

func accept(retire []types.LocalRecord) types.Verdict {
	return types.Verdict{Accept: true, Retire: retire, Outcome: types.OutcomeAccepted}
}

// reject keeps dups[survivor] and retires every other duplicate.
func reject(outcome types.Outcome, dups []types.LocalRecord, survivor int) types.Verdict {
	var retire []types.LocalRecord
	for i, d := range dups {
		if i != survivor {
			retire = append(retire, d)
		}
	}
	return types.Verdict{Accept: false, Retire: retire, Outcome: outcome}
}
