package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/stats"
	"gopkg.in/yaml.v3"
)

// Layouts groups the fixed positional tables of the three document formats
// the pipeline reads and writes.
type Layouts struct {
	Source core.SourceLayout  `yaml:"source"`
	Stats  stats.ParserConfig `yaml:"stats"`
	Report stats.ReportLayout `yaml:"report"`
}

// DefaultLayouts returns the built-in layouts.
func DefaultLayouts() Layouts {
	return Layouts{
		Source: core.DefaultSourceLayout(),
		Stats:  stats.DefaultParserConfig(),
		Report: stats.DefaultReportLayout(),
	}
}

// LoadLayouts returns the built-in layouts overridden field by field by the
// YAML document at path. An empty path yields the defaults.
//
//	report:
//	  month_columns:
//	    Oct: 3
//	  cumulative_rows: [88, 102]
func LoadLayouts(path string) (Layouts, error) {
	l := DefaultLayouts()
	if path == "" {
		return l, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Layouts{}, fmt.Errorf("read layout file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return Layouts{}, fmt.Errorf("parse layout file %s: %w", path, err)
	}

	if err := l.Validate(); err != nil {
		return Layouts{}, fmt.Errorf("layout file %s: %w", path, err)
	}
	return l, nil
}

// Validate checks the layouts for values that cannot address a cell.
func (l Layouts) Validate() error {
	src := l.Source
	for name, col := range map[string]int{
		"account_number": src.AccountNumber,
		"advisor":        src.Advisor,
		"full_name":      src.FullName,
		"total_hours":    src.TotalHours,
		"system":         src.System,
		"description":    src.Description,
		"date":           src.Date,
		"charge":         src.Charge,
	} {
		if col < 0 || col >= src.MinColumns {
			return fmt.Errorf("source column %s (%d) must be within min_columns (%d)", name, col, src.MinColumns)
		}
	}
	if src.HeaderRows < 0 {
		return fmt.Errorf("source header_rows must be non-negative")
	}
	if l.Stats.HeaderLines < 0 {
		return fmt.Errorf("stats header_lines must be non-negative")
	}
	if l.Stats.BlockMarker == "" {
		return fmt.Errorf("stats block_marker is empty")
	}
	return l.Report.Validate()
}
