// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

const (
	deletedMarker = "-deleted"
	suffixLen     = 5
	suffixAlpha   = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// RecordMutator is the part of the store the replacer needs.
type RecordMutator interface {
	Rename(ctx context.Context, storeID, newName string) error
	Remove(ctx context.Context, storeID string) error
}

// Replacer retires records with a rename-then-delete protocol.
type Replacer struct {
	store      RecordMutator
	maxNameLen int
	logger     *slog.Logger

	// suffix produces the random tail of a retired name. Tests replace it.
	suffix func() string
}

// NewReplacer creates a Replacer. maxNameLen is the store's name limit;
// values too small to hold the retirement suffix fall back to the default.
func NewReplacer(store RecordMutator, maxNameLen int, logger *slog.Logger) *Replacer {
	if maxNameLen <= len(deletedMarker)+suffixLen {
		maxNameLen = types.DefaultMaxNameLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replacer{
		store:      store,
		maxNameLen: maxNameLen,
		logger:     logger,
		suffix:     randomSuffix,
	}
}

// Retire renames every record out of the way, then removes the renamed
// ones. A failure on one record is logged and never stops the others.
// It returns the store ids that completed both phases, in input order.
func (r *Replacer) Retire(ctx context.Context, records []types.LocalRecord) []string {
	if len(records) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "reconcile.Retire")
	defer span.End()

	renamed := make([]types.LocalRecord, 0, len(records))
	for _, rec := range records {
		newName := r.RetiredName(rec.Name)
		if err := r.store.Rename(ctx, rec.StoreID, newName); err != nil {
			r.logger.Warn("rename before delete failed, record left in place",
				"store_id", rec.StoreID, "name", rec.Name, "error", err)
			retirementsTotal.WithLabelValues("rename_failed").Inc()
			continue
		}
		renamed = append(renamed, rec)
	}

	var retired []string
	for _, rec := range renamed {
		if err := r.store.Remove(ctx, rec.StoreID); err != nil {
			r.logger.Warn("delete after rename failed",
				"store_id", rec.StoreID, "error", err)
			retirementsTotal.WithLabelValues("remove_failed").Inc()
			continue
		}
		r.logger.Info("retired duplicate record", "store_id", rec.StoreID, "name", rec.Name)
		retirementsTotal.WithLabelValues("retired").Inc()
		retired = append(retired, rec.StoreID)
	}

	span.SetAttributes(
		attribute.Int("retire.requested", len(records)),
		attribute.Int("retire.completed", len(retired)),
	)
	return retired
}

// RetiredName returns the name a record is renamed to before deletion. The
// result never exceeds the store's name limit.
func (r *Replacer) RetiredName(name string) string {
	keep := r.maxNameLen - len(deletedMarker) - suffixLen
	return truncateRunes(norm.NFC.String(name), keep) + deletedMarker + r.suffix()
}

// IsRetiredName reports whether name has the shape RetiredName produces. A
// live record with such a name was renamed but never removed.
func IsRetiredName(name string) bool {
	i := strings.LastIndex(name, deletedMarker)
	if i < 0 {
		return false
	}
	tail := name[i+len(deletedMarker):]
	if len(tail) != suffixLen {
		return false
	}
	for _, c := range tail {
		if !strings.ContainsRune(suffixAlpha, c) {
			return false
		}
	}
	return true
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func randomSuffix() string {
	b := make([]byte, suffixLen)
	limit := big.NewInt(int64(len(suffixAlpha)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		b[i] = suffixAlpha[n.Int64()]
	}
	return string(b)
}
