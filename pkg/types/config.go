package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// StoreDriver selects the SQL driver behind the record store.
type StoreDriver string

const (
	DriverSQLite   StoreDriver = "sqlite3"
	DriverPostgres StoreDriver = "postgres"
)

// DefaultMaxNameLength is the longest record name the store accepts.
const DefaultMaxNameLength = 100

// StoreConfig holds settings for the record store.
type StoreConfig struct {
	// Driver selects the database: sqlite3 or postgres.
	Driver StoreDriver `json:"driver" yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite3 postgres"`

	// DSN is the data source name. For sqlite3 it is a file path.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn" validate:"required"`

	// MaxNameLength bounds record names, renamed ones included (default 100).
	MaxNameLength int `json:"max_name_length" yaml:"max_name_length" mapstructure:"max_name_length" validate:"gte=20"`
}

// HarvestConfig holds settings for the import stage.
type HarvestConfig struct {
	// Dir is the base directory of harvested records, one subdirectory per source.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir" validate:"required"`

	// Workers bounds how many sources are imported concurrently (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=1"`

	// RecordsPerSecond paces each worker. Zero disables pacing.
	RecordsPerSecond float64 `json:"records_per_second" yaml:"records_per_second" mapstructure:"records_per_second" validate:"gte=0"`

	// Timeout bounds a whole import run. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// SourceConfig describes one harvest source.
type SourceConfig struct {
	// ID is the source identifier stamped on every record it produces.
	ID string `json:"id" yaml:"id" mapstructure:"id" validate:"required"`

	// Title is a display name.
	Title string `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`

	// Config is the source's free-form configuration blob (JSON or YAML).
	// The priority registry reads its "priority" key.
	Config string `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// PipelineConfig groups all configuration for the tool.
type PipelineConfig struct {
	Store   StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	Harvest HarvestConfig  `json:"harvest" yaml:"harvest" mapstructure:"harvest"`
	Sources []SourceConfig `json:"sources" yaml:"sources" mapstructure:"sources" validate:"dive"`
}

// DefaultPipelineConfig returns the configuration used when nothing is set.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Store: StoreConfig{
			Driver:        DriverSQLite,
			DSN:           "harvest.db",
			MaxNameLength: DefaultMaxNameLength,
		},
		Harvest: HarvestConfig{
			Dir:     "harvest",
			Workers: 4,
		},
	}
}

// SourceIDs returns the configured source ids in declaration order.
func (c PipelineConfig) SourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		ids = append(ids, s.ID)
	}
	return ids
}

var configValidate = validator.New()

// Validate checks the configuration and reports every invalid field.
func (c PipelineConfig) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
