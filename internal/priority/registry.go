// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package priority ranks harvest sources by their configured authority. The
// ranking is only consulted when neither side of a duplicate comparison
// carries a usable timestamp.
package priority

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cast"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

// Default is the priority of unknown sources and of sources whose
// configuration cannot be read.
const Default = 0

// configKey is the key read from a source's configuration blob.
const configKey = "priority"

// Registry answers priority lookups for configured sources. It never fails:
// anything it cannot interpret degrades to Default with a warning.
type Registry struct {
	priorities map[string]int
}

// NewRegistry parses the configuration blob of every source once. Malformed
// entries are logged and fall back to Default.
func NewRegistry(sources []types.SourceConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{priorities: make(map[string]int, len(sources))}
	for _, src := range sources {
		p, err := parsePriority(src.Config)
		if err != nil {
			logger.Warn("invalid priority in source config, using default",
				"source", src.ID, "default", Default, "error", err)
			p = Default
		}
		r.priorities[src.ID] = p
	}
	return r
}

// PriorityOf returns the priority of sourceID, or Default when the source is
// unknown.
func (r *Registry) PriorityOf(sourceID string) int {
	if r == nil {
		return Default
	}
	if p, ok := r.priorities[sourceID]; ok {
		return p
	}
	return Default
}

// parsePriority reads the priority key from a JSON or YAML configuration
// blob. A missing blob or key is not an error.
func parsePriority(blob string) (int, error) {
	if strings.TrimSpace(blob) == "" {
		return Default, nil
	}

	var cfg map[string]any
	if err := yaml.Unmarshal([]byte(blob), &cfg); err != nil {
		return Default, fmt.Errorf("parsing source config: %w", err)
	}
	raw, ok := cfg[configKey]
	if !ok || raw == nil {
		return Default, nil
	}

	switch v := raw.(type) {
	case bool:
		return Default, fmt.Errorf("priority must be a number, got %v", v)
	case string:
		v = strings.TrimSpace(v)
		n, err := cast.ToIntE(v)
		if err != nil {
			return Default, fmt.Errorf("priority %q is not a number", v)
		}
		return n, nil
	case float64:
		if v != float64(int(v)) {
			return Default, fmt.Errorf("priority %v is not a whole number", v)
		}
		return int(v), nil
	default:
		n, err := cast.ToIntE(v)
		if err != nil {
			return Default, fmt.Errorf("priority has unsupported type %T", raw)
		}
		return n, nil
	}
}
