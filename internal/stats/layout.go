package stats

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/labdigest/internal/core"
)

// Cadence is the period a stats report covers.
type Cadence string

const (
	CadenceMonthly    Cadence = "Monthly"
	CadenceCumulative Cadence = "Cumulative"
)

// ErrUnknownMonth is returned when a report name carries no month number.
var ErrUnknownMonth = errors.New("unknown report month")

// CadenceFor maps a stats artifact kind to its cadence.
func CadenceFor(kind core.ArtifactKind) (Cadence, error) {
	switch kind {
	case core.KindStatsMonthly:
		return CadenceMonthly, nil
	case core.KindStatsCumulative:
		return CadenceCumulative, nil
	default:
		return "", fmt.Errorf("unknown cadence for artifact kind %q", kind)
	}
}

// FiscalMonths lists month abbreviations in report column order.
var FiscalMonths = []string{"Oct", "Nov", "Dec", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep"}

var monthAbbreviations = map[string]string{
	"01": "Jan", "02": "Feb", "03": "Mar", "04": "Apr",
	"05": "May", "06": "Jun", "07": "Jul", "08": "Aug",
	"09": "Sep", "10": "Oct", "11": "Nov", "12": "Dec",
}

// ReportMonth reads the month of a stats report from its name, which starts
// with YYYY-MM.
func ReportMonth(name string) (string, error) {
	base := filepath.Base(name)
	if len(base) < 7 {
		return "", fmt.Errorf("%w in %q", ErrUnknownMonth, name)
	}
	month, ok := monthAbbreviations[base[5:7]]
	if !ok {
		return "", fmt.Errorf("%w in %q", ErrUnknownMonth, name)
	}
	return month, nil
}

// ReportLayout holds the fixed cell positions of the financial report.
// Rows and columns are 1-based, as in the spreadsheet.
type ReportLayout struct {
	Sheet           string         `yaml:"sheet"`
	Title           string         `yaml:"title"`
	MonthColumns    map[string]int `yaml:"month_columns"`
	BlockRows       []int          `yaml:"block_rows"`      // First row of each sub-block, by position
	CumulativeRows  []int          `yaml:"cumulative_rows"` // Block rows written only from cumulative reports
	MonthHeaderRows []int          `yaml:"month_header_rows"`
}

// DefaultReportLayout returns the layout of the current report template.
func DefaultReportLayout() ReportLayout {
	return ReportLayout{
		Sheet: "Report",
		Title: "Financial Report",
		MonthColumns: map[string]int{
			"Oct": 2, "Nov": 3, "Dec": 4, "Jan": 5, "Feb": 6, "Mar": 7,
			"Apr": 8, "May": 9, "Jun": 10, "Jul": 11, "Aug": 12, "Sep": 13,
		},
		BlockRows:       []int{8, 22, 39, 48, 62, 79, 88, 102, 128, 142, 159, 170, 185},
		CumulativeRows:  []int{88, 102},
		MonthHeaderRows: []int{7, 21, 38, 47, 61, 78, 87, 101, 118, 127, 141, 158, 169, 184},
	}
}

// Validate reports layout tables that cannot be used.
func (l ReportLayout) Validate() error {
	var errs []string
	if l.Sheet == "" {
		errs = append(errs, "sheet name is empty")
	}
	for _, m := range FiscalMonths {
		if l.MonthColumns[m] < 1 {
			errs = append(errs, fmt.Sprintf("month %s has no column", m))
		}
	}
	for _, r := range l.CumulativeRows {
		if !slices.Contains(l.BlockRows, r) {
			errs = append(errs, fmt.Sprintf("cumulative row %d is not a block row", r))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("report layout: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Coordinate is the top cell of a sub-block in the report.
type Coordinate struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Placement is one sub-block resolved to its report position.
type Placement struct {
	SubBlock int        `json:"sub_block"`
	At       Coordinate `json:"at"`
	Values   [][]string `json:"values"` // One column, one row per value
}

// LayoutMapper resolves sub-block positions to report cells.
type LayoutMapper struct {
	layout ReportLayout
}

// NewLayoutMapper creates a mapper over the given layout.
func NewLayoutMapper(layout ReportLayout) *LayoutMapper {
	return &LayoutMapper{layout: layout}
}

// Layout returns the mapper's layout.
func (m *LayoutMapper) Layout() ReportLayout {
	return m.layout
}

// Resolve returns the report cell for the sub-block at the given position.
// ok is false when the position has no row, the month has no column, or the
// row is not written for reports of this cadence.
func (m *LayoutMapper) Resolve(subBlock int, month string, cadence Cadence) (at Coordinate, ok bool) {
	if subBlock < 0 || subBlock >= len(m.layout.BlockRows) {
		return Coordinate{}, false
	}
	col, ok := m.layout.MonthColumns[month]
	if !ok {
		return Coordinate{}, false
	}
	row := m.layout.BlockRows[subBlock]
	cumulativeOnly := slices.Contains(m.layout.CumulativeRows, row)
	switch cadence {
	case CadenceCumulative:
		if !cumulativeOnly {
			return Coordinate{}, false
		}
	case CadenceMonthly:
		if cumulativeOnly {
			return Coordinate{}, false
		}
	default:
		return Coordinate{}, false
	}
	return Coordinate{Row: row, Column: col}, true
}

// Plan resolves every sub-block of a report. Sub-blocks without a cell for
// this month and cadence are left out.
func (m *LayoutMapper) Plan(r Report, month string, cadence Cadence) []Placement {
	var out []Placement
	for _, sb := range r.SubBlocks() {
		at, ok := m.Resolve(sb.Index, month, cadence)
		if !ok {
			continue
		}
		values := make([][]string, len(sb.Values))
		for i, v := range sb.Values {
			values[i] = []string{v.Cell()}
		}
		out = append(out, Placement{SubBlock: sb.Index, At: at, Values: values})
	}
	return out
}
