package core

import (
	"regexp"
	"strings"
)

// SourceLayout holds the fixed 0-based column offsets of the lab-access
// export. It is injected so the mapping can be overridden from a layout file.
type SourceLayout struct {
	HeaderRows    int `yaml:"header_rows"`
	MinColumns    int `yaml:"min_columns"`
	AccountNumber int `yaml:"account_number"`
	Advisor       int `yaml:"advisor"`
	FullName      int `yaml:"full_name"`
	TotalHours    int `yaml:"total_hours"`
	System        int `yaml:"system"`
	Description   int `yaml:"description"`
	Date          int `yaml:"date"`
	Charge        int `yaml:"charge"`
}

// DefaultSourceLayout returns the offsets of the current export format.
func DefaultSourceLayout() SourceLayout {
	return SourceLayout{
		HeaderRows:    2,
		MinColumns:    18,
		AccountNumber: 1,
		Advisor:       4,
		FullName:      5,
		TotalHours:    6,
		System:        8,
		Description:   10,
		Date:          11,
		Charge:        13,
	}
}

// ColumnFor returns the source column holding the given name field.
func (l SourceLayout) ColumnFor(f NameField) (int, bool) {
	switch f {
	case FieldFullName:
		return l.FullName, true
	case FieldAdvisor:
		return l.Advisor, true
	default:
		return 0, false
	}
}

var (
	doorOpenedPattern = regexp.MustCompile(`Door Opened at (\d{2}:\d{2})`)
	timeWindowPattern = regexp.MustCompile(`(?m)^Time: (\d{2}:\d{2} [AP]M) - (\d{2}:\d{2} [AP]M)`)
)

// ResolveTimes extracts the clock-in and clock-out times from an access
// description. A door-open timestamp wins over a time window; with neither
// both times are DefaultClockTime.
func ResolveTimes(description string) (in, out string) {
	if m := doorOpenedPattern.FindStringSubmatch(description); m != nil {
		return m[1], m[1]
	}
	if m := timeWindowPattern.FindStringSubmatch(description); m != nil {
		return m[1], m[2]
	}
	return DefaultClockTime, DefaultClockTime
}

// DeriveUsageCode marks descriptions mentioning training as training usage.
func DeriveUsageCode(description string) UsageCode {
	if strings.Contains(strings.ToLower(description), "training") {
		return UsageTraining
	}
	return UsageStandard
}

// ColumnRemapper reshapes sanitized rows into canonical records.
type ColumnRemapper struct {
	layout SourceLayout
}

// NewColumnRemapper creates a remapper for the given source layout.
func NewColumnRemapper(layout SourceLayout) *ColumnRemapper {
	return &ColumnRemapper{layout: layout}
}

// Remap converts every row into a record. No rows are dropped: short rows
// are mapped with empty cells and reported as *FormatError warnings.
func (m *ColumnRemapper) Remap(rows [][]string) ([]CanonicalRecord, []error) {
	records := make([]CanonicalRecord, len(rows))
	var warnings []error
	for i, row := range rows {
		if len(row) < m.layout.MinColumns {
			warnings = append(warnings, &FormatError{
				Row:     DisplayRow(i),
				Columns: len(row),
				Want:    m.layout.MinColumns,
			})
		}
		records[i] = m.RemapRow(row)
	}
	return records, warnings
}

// RemapRow converts a single row. Missing cells read as empty.
func (m *ColumnRemapper) RemapRow(row []string) CanonicalRecord {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	desc := cell(m.layout.Description)
	in, out := ResolveTimes(desc)

	return CanonicalRecord{
		Date:          cell(m.layout.Date),
		FullName:      cell(m.layout.FullName),
		EID:           EIDPlaceholder,
		Advisor:       cell(m.layout.Advisor),
		AccountNumber: cell(m.layout.AccountNumber),
		TimeIn:        in,
		TimeOut:       out,
		TotalHours:    cell(m.layout.TotalHours),
		Charge:        cell(m.layout.Charge),
		System:        cell(m.layout.System),
		UsageCode:     DeriveUsageCode(desc),
	}
}
