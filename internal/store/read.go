// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

const recordColumns = `id, name, title, identifier, guid, modified, source_id, extras, metadata_created, metadata_modified`

// Find returns the live records sharing identifier, newest bookkeeping time
// first. Records whose GUID equals excludeGUID are left out; an empty
// excludeGUID excludes nothing.
func (s *Store) Find(ctx context.Context, identifier, excludeGUID string) ([]types.LocalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE identifier = ? AND state = ?`
	args := []any{identifier, stateActive}
	if excludeGUID != "" {
		query += ` AND guid <> ?`
		args = append(args, excludeGUID)
	}
	query += ` ORDER BY metadata_modified DESC, id`

	return s.queryRecords(ctx, query, args...)
}

// Fetch returns the live record with the given store id.
func (s *Store) Fetch(ctx context.Context, storeID string) (types.LocalRecord, error) {
	return s.queryOne(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ? AND state = ?`,
		storeID, stateActive)
}

// FindByGUID returns the live record previously written for guid.
func (s *Store) FindByGUID(ctx context.Context, guid string) (types.LocalRecord, error) {
	if guid == "" {
		return types.LocalRecord{}, ErrNotFound
	}
	return s.queryOne(ctx,
		`SELECT `+recordColumns+` FROM records WHERE guid = ? AND state = ? ORDER BY metadata_modified DESC, id LIMIT 1`,
		guid, stateActive)
}

// List returns every live record ordered by name.
func (s *Store) List(ctx context.Context) ([]types.LocalRecord, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE state = ? ORDER BY name`,
		stateActive)
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (types.LocalRecord, error) {
	rows, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return types.LocalRecord{}, err
	}
	if len(rows) == 0 {
		return types.LocalRecord{}, ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]types.LocalRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []types.LocalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (types.LocalRecord, error) {
	var (
		rec               types.LocalRecord
		modified          sql.NullString
		extras            string
		created, bookkept string
	)
	if err := rows.Scan(&rec.StoreID, &rec.Name, &rec.Title, &rec.Identifier, &rec.GUID,
		&modified, &rec.SourceID, &extras, &created, &bookkept); err != nil {
		return types.LocalRecord{}, fmt.Errorf("scanning record: %w", err)
	}

	if modified.Valid && modified.String != "" {
		t, err := parseTime(modified.String)
		if err != nil {
			return types.LocalRecord{}, fmt.Errorf("record %s: %w", rec.StoreID, err)
		}
		rec.Modified = &t
	}

	if extras != "" && extras != "{}" {
		if err := json.Unmarshal([]byte(extras), &rec.Extras); err != nil {
			return types.LocalRecord{}, fmt.Errorf("record %s: decoding extras: %w", rec.StoreID, err)
		}
	}

	var err error
	if rec.MetadataCreated, err = parseTime(created); err != nil {
		return types.LocalRecord{}, fmt.Errorf("record %s: %w", rec.StoreID, err)
	}
	if rec.MetadataModified, err = parseTime(bookkept); err != nil {
		return types.LocalRecord{}, fmt.Errorf("record %s: %w", rec.StoreID, err)
	}
	return rec, nil
}

// IsNotFound reports whether err means no live record matched.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
