// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/harvest-reconcile/internal/extras"
	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// FileError reports a record file that could not be loaded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// SourceDir returns the directory holding one source's harvested records.
func SourceDir(harvestDir, sourceID string) string {
	return filepath.Join(harvestDir, sourceID)
}

// LoadSource reads every record file (*.yaml, *.yml) of one source, in
// file name order, and stamps each record with sourceID. Files that fail to
// parse are returned separately and do not stop the others. The error is
// non-nil only when the source directory itself cannot be read.
func LoadSource(harvestDir, sourceID string, logger *slog.Logger) ([]types.IncomingRecord, []*FileError, error) {
	dir := SourceDir(harvestDir, sourceID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading source directory %s: %w", dir, err)
	}

	var (
		records  []types.IncomingRecord
		failures []*FileError
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, name)
		rec, err := extras.ParseFile(path, sourceID, logger)
		if err != nil {
			failures = append(failures, &FileError{Path: path, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, failures, nil
}
