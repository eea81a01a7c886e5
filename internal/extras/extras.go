// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extras turns harvested record files into incoming records.
//
// Harvesters write one YAML file per record. The business identifier and
// the source's last-modified time travel in the record's attribute bag
// ("extras"), which harvesters write either as a list of key/value pairs or
// as a plain mapping.
package extras

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// Attribute-bag keys with meaning to the resolver.
const (
	KeyIdentifier = "identifier"
	KeyModified   = "modified"
)

// modifiedLayouts are tried in order. Values without a zone are UTC.
var modifiedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// RawRecord is a harvested record file.
type RawRecord struct {
	Name   string `yaml:"name" validate:"omitempty,max=512"`
	Title  string `yaml:"title" validate:"omitempty,max=2048"`
	GUID   string `yaml:"guid" validate:"omitempty,max=512"`
	Extras Extras `yaml:"extras" validate:"dive"`
}

// Extra is one attribute-bag entry.
type Extra struct {
	Key   string `yaml:"key" validate:"required"`
	Value string `yaml:"value"`
}

// Extras is an attribute bag. It decodes from a sequence of {key, value}
// pairs or from a mapping; mapping entries keep their document order.
type Extras []Extra

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Extras) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var pairs []struct {
			Key   string `yaml:"key"`
			Value any    `yaml:"value"`
		}
		if err := node.Decode(&pairs); err != nil {
			return fmt.Errorf("decoding extras list: %w", err)
		}
		out := make(Extras, 0, len(pairs))
		for _, p := range pairs {
			v, err := scalarString(p.Value)
			if err != nil {
				return fmt.Errorf("extra %q: %w", p.Key, err)
			}
			out = append(out, Extra{Key: p.Key, Value: v})
		}
		*e = out
	case yaml.MappingNode:
		out := make(Extras, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var v any
			if err := node.Content[i+1].Decode(&v); err != nil {
				return fmt.Errorf("decoding extra %q: %w", node.Content[i].Value, err)
			}
			s, err := scalarString(v)
			if err != nil {
				return fmt.Errorf("extra %q: %w", node.Content[i].Value, err)
			}
			out = append(out, Extra{Key: node.Content[i].Value, Value: s})
		}
		*e = out
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("extras must be a list or a mapping, got %q", node.Value)
		}
		*e = nil
	default:
		return errors.New("extras must be a list or a mapping")
	}
	return nil
}

// Map returns the bag as a map. Later entries win over earlier ones.
func (e Extras) Map() map[string]string {
	if len(e) == 0 {
		return nil
	}
	m := make(map[string]string, len(e))
	for _, x := range e {
		m[x.Key] = x.Value
	}
	return m
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case []any, map[string]any:
		return "", errors.New("value must be a scalar")
	}
	return cast.ToStringE(v)
}

var recordValidate = validator.New()

// Parse decodes a harvested record file and maps it to an IncomingRecord
// stamped with sourceID. An unparsable modified value is dropped with a
// warning; the record is still usable, only its freshness is unknown.
func Parse(data []byte, sourceID string, logger *slog.Logger) (types.IncomingRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw RawRecord
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return types.IncomingRecord{}, fmt.Errorf("parsing record: %w", err)
	}
	if err := recordValidate.Struct(raw); err != nil {
		return types.IncomingRecord{}, fmt.Errorf("invalid record: %w", err)
	}

	bag := raw.Extras.Map()
	rec := types.IncomingRecord{
		Identifier: strings.TrimSpace(bag[KeyIdentifier]),
		GUID:       strings.TrimSpace(raw.GUID),
		SourceID:   sourceID,
		Title:      strings.TrimSpace(raw.Title),
		Extras:     bag,
	}

	if s := strings.TrimSpace(bag[KeyModified]); s != "" {
		if t, ok := ParseModified(s); ok {
			rec.Modified = &t
		} else {
			logger.Warn("unparsable modified time, treating freshness as unknown",
				"source", sourceID, "guid", rec.GUID, "modified", s)
		}
	}

	rec.Name = NormalizeName(raw.Name)
	if rec.Name == "" {
		rec.Name = Slug(rec.Identifier)
	}
	if rec.Name == "" {
		rec.Name = Slug(rec.Title)
	}
	if rec.Name == "" {
		return types.IncomingRecord{}, errors.New("invalid record: no name, identifier or title to derive one from")
	}
	return rec, nil
}

// ParseFile reads and parses one harvested record file.
func ParseFile(path, sourceID string, logger *slog.Logger) (types.IncomingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.IncomingRecord{}, fmt.Errorf("reading record file: %w", err)
	}
	return Parse(data, sourceID, logger)
}

// ParseModified parses a source timestamp in any of the accepted layouts.
func ParseModified(s string) (time.Time, bool) {
	for _, layout := range modifiedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeName composes, trims and lower-cases a record name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}

// Slug derives a record name from free text: letters and digits are kept
// lower-cased, every other run of characters becomes a single hyphen.
func Slug(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range norm.NFC.String(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingDash = true
	}
	return b.String()
}
