// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extras

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListExtras(t *testing.T) {
	data := []byte(`
name: Annual-Budget
title: Annual Budget 2017
guid: g-1
extras:
  - key: identifier
    value: budget-2017
  - key: modified
    value: "2017-08-15T10:00:00Z"
  - key: theme
    value: finance
  - key: version
    value: 3
`)
	rec, err := Parse(data, "city", nil)
	require.NoError(t, err)

	assert.Equal(t, "budget-2017", rec.Identifier)
	assert.Equal(t, "g-1", rec.GUID)
	assert.Equal(t, "city", rec.SourceID)
	assert.Equal(t, "annual-budget", rec.Name)
	assert.Equal(t, "Annual Budget 2017", rec.Title)
	require.NotNil(t, rec.Modified)
	assert.True(t, rec.Modified.Equal(time.Date(2017, 8, 15, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "finance", rec.Extras["theme"])
	assert.Equal(t, "3", rec.Extras["version"])
}

func TestParseMappingExtras(t *testing.T) {
	data := []byte(`
name: roads
guid: g-2
extras:
  identifier: roads-network
  modified: 2017-08-15
`)
	rec, err := Parse(data, "state", nil)
	require.NoError(t, err)

	assert.Equal(t, "roads-network", rec.Identifier)
	require.NotNil(t, rec.Modified)
	assert.True(t, rec.Modified.Equal(time.Date(2017, 8, 15, 0, 0, 0, 0, time.UTC)))
}

func TestParseWithoutExtras(t *testing.T) {
	rec, err := Parse([]byte("name: lonely\n"), "s", nil)
	require.NoError(t, err)
	assert.Empty(t, rec.Identifier)
	assert.Nil(t, rec.Modified)
	assert.False(t, rec.HasIdentifier())
}

func TestParseUnparsableModified(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	data := []byte(`
name: roads
extras:
  identifier: roads-network
  modified: last tuesday
`)
	rec, err := Parse(data, "state", logger)
	require.NoError(t, err)
	assert.Nil(t, rec.Modified)
	assert.Equal(t, "roads-network", rec.Identifier)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "source=state")
}

func TestParseNameFallback(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"identifier slug", "extras:\n  identifier: 'https://data.example.gov/Roads Network'\n", "https-data-example-gov-roads-network"},
		{"title slug", "title: '  Crime Stats: 2017!  '\n", "crime-stats-2017"},
		{"blank name ignored", "name: '   '\ntitle: Parks\n", "parks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse([]byte(tt.data), "s", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Name)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "name: [unclosed\n"},
		{"scalar extras", "name: a\nextras: nope\n"},
		{"pair without key", "name: a\nextras:\n  - value: b\n"},
		{"nested extra value", "name: a\nextras:\n  identifier: [1, 2]\n"},
		{"nothing to name it by", "guid: g-1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "s", nil)
			assert.Error(t, err)
		})
	}
}

func TestParseModified(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2017-08-15T10:00:00Z", time.Date(2017, 8, 15, 10, 0, 0, 0, time.UTC), true},
		{"2017-08-15T12:00:00+02:00", time.Date(2017, 8, 15, 10, 0, 0, 0, time.UTC), true},
		{"2017-08-15T10:00:00", time.Date(2017, 8, 15, 10, 0, 0, 0, time.UTC), true},
		{"2017-08-15T10:00:00.123456", time.Date(2017, 8, 15, 10, 0, 0, 123456000, time.UTC), true},
		{"2017-08-15", time.Date(2017, 8, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/08/2017", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseModified(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "café", NormalizeName(" CAFÉ "))
	assert.Equal(t, "", NormalizeName("  "))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: parks\n"), 0o644))

	rec, err := ParseFile(path, "s", nil)
	require.NoError(t, err)
	assert.Equal(t, "parks", rec.Name)

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"), "s", nil)
	assert.Error(t, err)
}
