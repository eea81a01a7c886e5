// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// Create inserts rec as a new live record and returns it with its
// store-assigned id. A name collision returns ErrNameConflict.
func (s *Store) Create(ctx context.Context, rec types.IncomingRecord) (types.LocalRecord, error) {
	if err := s.CheckName(rec.Name); err != nil {
		return types.LocalRecord{}, err
	}
	extras, err := encodeExtras(rec.Extras)
	if err != nil {
		return types.LocalRecord{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return types.LocalRecord{}, fmt.Errorf("generating store id: %w", err)
	}
	now := s.now()

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO records (id, name, title, identifier, guid, modified, source_id, extras, state, metadata_created, metadata_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(), rec.Name, rec.Title, rec.Identifier, rec.GUID,
		nullableTime(rec.Modified), rec.SourceID, extras, stateActive,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.LocalRecord{}, fmt.Errorf("creating %q: %w", rec.Name, ErrNameConflict)
		}
		return types.LocalRecord{}, fmt.Errorf("creating %q: %w", rec.Name, err)
	}

	return toLocal(id.String(), rec, now, now), nil
}

// Update overwrites the live record storeID with the content of rec,
// keeping its id and creation time.
func (s *Store) Update(ctx context.Context, storeID string, rec types.IncomingRecord) (types.LocalRecord, error) {
	if err := s.CheckName(rec.Name); err != nil {
		return types.LocalRecord{}, err
	}
	current, err := s.Fetch(ctx, storeID)
	if err != nil {
		return types.LocalRecord{}, fmt.Errorf("updating %s: %w", storeID, err)
	}
	extras, err := encodeExtras(rec.Extras)
	if err != nil {
		return types.LocalRecord{}, err
	}
	now := s.now()

	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE records SET name = ?, title = ?, identifier = ?, guid = ?, modified = ?,
			source_id = ?, extras = ?, metadata_modified = ?
		 WHERE id = ? AND state = ?`),
		rec.Name, rec.Title, rec.Identifier, rec.GUID, nullableTime(rec.Modified),
		rec.SourceID, extras, formatTime(now), storeID, stateActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.LocalRecord{}, fmt.Errorf("updating %s to %q: %w", storeID, rec.Name, ErrNameConflict)
		}
		return types.LocalRecord{}, fmt.Errorf("updating %s: %w", storeID, err)
	}
	if err := expectOneRow(res, storeID); err != nil {
		return types.LocalRecord{}, err
	}

	return toLocal(storeID, rec, current.MetadataCreated, now), nil
}

// Rename changes the name of the live record storeID. Its bookkeeping time
// is left alone.
func (s *Store) Rename(ctx context.Context, storeID, newName string) error {
	if err := s.CheckName(newName); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE records SET name = ? WHERE id = ? AND state = ?`),
		newName, storeID, stateActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("renaming %s to %q: %w", storeID, newName, ErrNameConflict)
		}
		return fmt.Errorf("renaming %s: %w", storeID, err)
	}
	return expectOneRow(res, storeID)
}

// Remove soft-deletes the live record storeID. The row keeps its name, so
// the name stays reserved.
func (s *Store) Remove(ctx context.Context, storeID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE records SET state = ?, metadata_modified = ? WHERE id = ? AND state = ?`),
		stateDeleted, formatTime(s.now()), storeID, stateActive,
	)
	if err != nil {
		return fmt.Errorf("removing %s: %w", storeID, err)
	}
	return expectOneRow(res, storeID)
}

// CheckName reports whether name can be written: non-empty and within the
// store's name length limit.
func (s *Store) CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("record name is empty")
	}
	if n := utf8.RuneCountInString(name); n > s.maxNameLen {
		return fmt.Errorf("record name %q is %d characters, limit is %d", name, n, s.maxNameLen)
	}
	return nil
}

func expectOneRow(res sql.Result, storeID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for %s: %w", storeID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", storeID, ErrNotFound)
	}
	return nil
}

func encodeExtras(extras map[string]string) (string, error) {
	if len(extras) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return "", fmt.Errorf("encoding extras: %w", err)
	}
	return string(data), nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func toLocal(storeID string, rec types.IncomingRecord, created, modified time.Time) types.LocalRecord {
	local := types.LocalRecord{
		StoreID:          storeID,
		Identifier:       rec.Identifier,
		GUID:             rec.GUID,
		Name:             rec.Name,
		SourceID:         rec.SourceID,
		Title:            rec.Title,
		Extras:           rec.Extras,
		MetadataCreated:  created,
		MetadataModified: modified,
	}
	if rec.Modified != nil {
		t := rec.Modified.UTC()
		local.Modified = &t
	}
	return local
}
