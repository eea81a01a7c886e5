// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// IncomingRecord is a harvested record on its way into the store. It only
// lives for the duration of one import decision.
type IncomingRecord struct {
	// Identifier is the business key shared by every copy of the same
	// real-world dataset. Empty means the record cannot be deduplicated.
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`

	// GUID distinguishes this harvested object from copies of the same
	// identifier harvested by other sources.
	GUID string `json:"guid,omitempty" yaml:"guid,omitempty"`

	// Modified is the last-modified time claimed by the source. Nil means
	// freshness is unknown.
	Modified *time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`

	// SourceID identifies the harvest source that produced the record.
	SourceID string `json:"source_id" yaml:"source_id"`

	// Name is the human-readable store name the record is written under.
	Name string `json:"name" yaml:"name"`

	// Title is the display title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Extras holds the remaining harvested attributes, passed through to the store.
	Extras map[string]string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// HasIdentifier reports whether the record carries a business key.
func (r IncomingRecord) HasIdentifier() bool {
	return r.Identifier != ""
}

// LocalRecord is a record already present in the store.
type LocalRecord struct {
	// StoreID is assigned by the store. It is not a business key.
	StoreID string `json:"store_id" yaml:"store_id"`

	Identifier string     `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	GUID       string     `json:"guid,omitempty" yaml:"guid,omitempty"`
	Modified   *time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`

	// Name is globally unique in the store, soft-deleted rows included.
	Name string `json:"name" yaml:"name"`

	SourceID string            `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Title    string            `json:"title,omitempty" yaml:"title,omitempty"`
	Extras   map[string]string `json:"extras,omitempty" yaml:"extras,omitempty"`

	// MetadataCreated and MetadataModified are store bookkeeping times,
	// unrelated to the business Modified field.
	MetadataCreated  time.Time `json:"metadata_created" yaml:"metadata_created"`
	MetadataModified time.Time `json:"metadata_modified" yaml:"metadata_modified"`
}
