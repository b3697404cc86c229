// Package content holds the read-only category table that shapes debris
// fields: size range plus value and damage multipliers per category tag.
package content

import (
	"fmt"

	"github.com/Softhook/elite-sub000/pkg/core"
)

// Config is the per-category content entry.
type Config struct {
	MinSize          float64 `json:"minSize" mapstructure:"minSize"`
	MaxSize          float64 `json:"maxSize" mapstructure:"maxSize"`
	ValueMultiplier  float64 `json:"valueMultiplier" mapstructure:"valueMultiplier"`
	DamageMultiplier float64 `json:"damageMultiplier" mapstructure:"damageMultiplier"`
}

// MinDiameter is the smallest size that still yields a hit point.
const MinDiameter = 0.5

// Validate checks the size range and multipliers.
func (c Config) Validate() error {
	if !(c.MinSize >= MinDiameter) || c.MaxSize < c.MinSize {
		return fmt.Errorf("invalid size range [%g, %g], sizes start at %g", c.MinSize, c.MaxSize, MinDiameter)
	}
	if c.ValueMultiplier < 0 || c.DamageMultiplier < 0 {
		return fmt.Errorf("multipliers must be non-negative")
	}
	return nil
}

// DefaultCategory is used when a field names no category.
const DefaultCategory core.Category = "rocky"

// DefaultConfig is the fallback for unknown category tags.
var DefaultConfig = Config{MinSize: 20, MaxSize: 60, ValueMultiplier: 1, DamageMultiplier: 1}

// Table maps category tags to their content entry.
type Table struct {
	entries  map[core.Category]Config
	fallback Config
}

// NewTable builds a table. Invalid entries are rejected.
func NewTable(entries map[core.Category]Config, fallback Config) (Table, error) {
	if err := fallback.Validate(); err != nil {
		return Table{}, fmt.Errorf("fallback: %w", err)
	}
	t := Table{entries: make(map[core.Category]Config, len(entries)), fallback: fallback}
	for tag, cfg := range entries {
		if err := cfg.Validate(); err != nil {
			return Table{}, fmt.Errorf("category %q: %w", tag, err)
		}
		t.entries[tag] = cfg
	}
	return t, nil
}

// DefaultTable returns the built-in categories.
func DefaultTable() Table {
	return Table{
		entries: map[core.Category]Config{
			"rocky":       DefaultConfig,
			"metallic":    {MinSize: 15, MaxSize: 45, ValueMultiplier: 2.5, DamageMultiplier: 1.5},
			"icy":         {MinSize: 25, MaxSize: 70, ValueMultiplier: 0.8, DamageMultiplier: 0.7},
			"crystalline": {MinSize: 10, MaxSize: 30, ValueMultiplier: 4, DamageMultiplier: 1.2},
		},
		fallback: DefaultConfig,
	}
}

// Lookup returns the entry for tag and whether it was found. Unknown tags
// (and a zero Table) yield the fallback entry.
func (t Table) Lookup(tag core.Category) (Config, bool) {
	if cfg, ok := t.entries[tag]; ok {
		return cfg, true
	}
	if t.fallback == (Config{}) {
		return DefaultConfig, false
	}
	return t.fallback, false
}

// Categories returns the number of known categories.
func (t Table) Categories() int { return len(t.entries) }

// Merge returns a copy of t with overrides added or replacing existing
// categories.
func (t Table) Merge(overrides map[core.Category]Config) (Table, error) {
	entries := make(map[core.Category]Config, len(t.entries)+len(overrides))
	for tag, cfg := range t.entries {
		entries[tag] = cfg
	}
	for tag, cfg := range overrides {
		entries[tag] = cfg
	}
	fallback := t.fallback
	if fallback == (Config{}) {
		fallback = DefaultConfig
	}
	return NewTable(entries, fallback)
}
