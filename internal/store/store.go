// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists harvested records and exposes the lookups and
// mutations the reconciliation pipeline needs: duplicate lookup by
// identifier, create/update, rename and soft delete.
//
// Record names are unique across every row, soft-deleted ones included, so a
// retired record keeps its name reserved until it is renamed away.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

var (
	// ErrNotFound is returned when no live record matches.
	ErrNotFound = errors.New("record not found")

	// ErrNameConflict is returned when a create or rename collides with an
	// existing name.
	ErrNameConflict = errors.New("record name already in use")
)

const (
	stateActive  = "active"
	stateDeleted = "deleted"

	// timeLayout is fixed width so text ordering matches time ordering.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	pgUniqueViolation = "23505"
)

// Store manages the record database.
type Store struct {
	db         *sql.DB
	driver     types.StoreDriver
	maxNameLen int

	// now stamps bookkeeping times. Tests replace it.
	now func() time.Time
}

// Open connects to the database described by cfg and creates the schema if
// it does not exist. For sqlite3 the DSN is a file path; its directory is
// created on demand.
func Open(ctx context.Context, cfg types.StoreConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = types.DriverSQLite
	}

	var dsn string
	switch driver {
	case types.DriverSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = cfg.DSN + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	case types.DriverPostgres:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == types.DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	s := New(db, driver, cfg.MaxNameLength)
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// New wraps an existing connection without touching the schema.
func New(db *sql.DB, driver types.StoreDriver, maxNameLen int) *Store {
	if maxNameLen <= 0 {
		maxNameLen = types.DefaultMaxNameLength
	}
	return &Store{
		db:         db,
		driver:     driver,
		maxNameLen: maxNameLen,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// MaxNameLength returns the longest name the store accepts.
func (s *Store) MaxNameLength() int {
	return s.maxNameLen
}

func (s *Store) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			identifier TEXT NOT NULL DEFAULT '',
			guid TEXT NOT NULL DEFAULT '',
			modified TEXT,
			source_id TEXT NOT NULL DEFAULT '',
			extras TEXT NOT NULL DEFAULT '{}',
			state TEXT NOT NULL DEFAULT 'active',
			metadata_created TEXT NOT NULL,
			metadata_modified TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_identifier ON records(identifier)`,
		`CREATE INDEX IF NOT EXISTS idx_records_guid ON records(guid)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the driver's native form.
func (s *Store) rebind(query string) string {
	if s.driver != types.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// either supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
