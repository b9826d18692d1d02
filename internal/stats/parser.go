// Package stats reads the text usage reports of the access system and places
// their numbers into the financial report.
//
// A report is a list of category sections separated by dashed marker lines.
// The parser keeps the categories the financial report carries, puts them in
// report order and splits them into sub-blocks of label/value lines. The
// layout mapper turns a sub-block's position into a report cell.
package stats

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/source"
)

// ErrValueParse is wrapped by *LineError.
var ErrValueParse = errors.New("stats value parse error")

// LineError reports a data line whose value could not be read. The line
// keeps its slot in the sub-block.
type LineError struct {
	Line   int // 0-based index in the filtered line sequence
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %s", e.Line, e.Text, e.Reason)
}

func (e *LineError) Unwrap() error { return ErrValueParse }

// ParserConfig holds the text conventions of the stats report.
type ParserConfig struct {
	HeaderLines       int      `yaml:"header_lines"`
	IgnoredLabels     []string `yaml:"ignored_labels"`     // Lines containing any of these are dropped
	IgnoredCategories []string `yaml:"ignored_categories"` // Blocks whose name contains any of these are dropped
	TargetOrder       []string `yaml:"target_order"`       // Report order, matched as name prefixes
	BlockMarker       string   `yaml:"block_marker"`

	// A sub-block begins on the line after one of these markers.
	SubBlockMarkers []string `yaml:"sub_block_markers"`
	// A sub-block begins on the line holding one of these markers.
	InlineSubBlockMarkers []string `yaml:"inline_sub_block_markers"`
}

// DefaultParserConfig returns the conventions of the current report format.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		HeaderLines: 7,
		IgnoredLabels: []string{
			"Standard Use\t", "Train Use\t", "Contract Use\t",
			"New Train Use\t", "Trainer Use\t", "Contractor Use\t",
			"All Codes Use\t", "On-Site Use\t",
			"Total\t", "=", "*",
		},
		IgnoredCategories: []string{
			"Contract Time", "Training Fees", "Standard Fees", "Training Time",
			"Standard Time", "Trained Users", "Contract Users",
		},
		TargetOrder: []string{
			"Lab Time",
			"Monthly Users",
			"Standard Users",
			"Fees",
			"New Users Trained",
		},
		BlockMarker:           "------",
		SubBlockMarkers:       []string{"(By Affiliation)", "(By Discipline)"},
		InlineSubBlockMarkers: []string{"Remote Use\t"},
	}
}

// Value is one parsed data line.
type Value struct {
	Label  string  `json:"label"`
	Number float64 `json:"number"`
	Err    error   `json:"-"`
}

// Cell renders the value for the report. Unparsed values are empty.
func (v Value) Cell() string {
	if v.Err != nil {
		return ""
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// SubBlock is a run of values following a sub-category marker.
type SubBlock struct {
	Index  int     `json:"index"` // Position among all sub-blocks of the report
	Marker string  `json:"marker"`
	Values []Value `json:"values"`
}

// Block is one category of the report, in target order.
type Block struct {
	Name      string     `json:"name"`
	Present   bool       `json:"present"`
	SubBlocks []SubBlock `json:"sub_blocks"`
}

// Report is the parsed form of one stats document.
type Report struct {
	Blocks []Block `json:"blocks"`
}

// SubBlocks returns every sub-block in report order.
func (r Report) SubBlocks() []SubBlock {
	var out []SubBlock
	for _, b := range r.Blocks {
		out = append(out, b.SubBlocks...)
	}
	return out
}

// Parser extracts blocks from stats report text.
type Parser struct {
	cfg ParserConfig
}

// NewParser creates a parser for the given conventions.
func NewParser(cfg ParserConfig) *Parser {
	return &Parser{cfg: cfg}
}

type segment struct {
	name  string
	lines []string
}

// Parse reads a stats report. The returned report always has one Block per
// target category; categories missing from the text are not Present and
// reported as core.ErrLayoutGap warnings. Unreadable values are reported as
// *LineError warnings and keep their slot.
func (p *Parser) Parse(text string) (Report, []error) {
	lines := source.Lines(text)
	if len(lines) <= p.cfg.HeaderLines {
		lines = nil
	} else {
		lines = lines[p.cfg.HeaderLines:]
	}

	lines = slices.DeleteFunc(lines, p.ignoredLine)
	segments := slices.DeleteFunc(p.segment(lines), func(s segment) bool {
		return containsAny(s.name, p.cfg.IgnoredCategories)
	})

	var warnings []error
	report := Report{Blocks: make([]Block, len(p.cfg.TargetOrder))}
	var flat []string
	var owner []int
	for i, target := range p.cfg.TargetOrder {
		idx := slices.IndexFunc(segments, func(s segment) bool {
			return strings.HasPrefix(s.name, target)
		})
		if idx < 0 {
			report.Blocks[i] = Block{Name: target}
			warnings = append(warnings, fmt.Errorf("%w: %s", core.ErrLayoutGap, target))
			continue
		}
		seg := segments[idx]
		report.Blocks[i] = Block{Name: seg.name, Present: true}
		flat = append(flat, seg.lines...)
		for range seg.lines {
			owner = append(owner, i)
		}
	}

	for k, sb := range p.splitSubBlocks(flat) {
		values := make([]Value, 0, sb.end-sb.start)
		for n := sb.start; n < sb.end; n++ {
			v, err := parseValue(n, flat[n])
			if err != nil {
				warnings = append(warnings, err)
			}
			values = append(values, v)
		}
		b := &report.Blocks[owner[sb.marker]]
		b.SubBlocks = append(b.SubBlocks, SubBlock{
			Index:  k,
			Marker: strings.TrimSpace(flat[sb.marker]),
			Values: values,
		})
	}

	return report, warnings
}

func (p *Parser) ignoredLine(line string) bool {
	return strings.TrimSpace(line) == "" || containsAny(line, p.cfg.IgnoredLabels)
}

// segment groups lines by block marker. Lines before the first marker
// belong to no block.
func (p *Parser) segment(lines []string) []segment {
	var out []segment
	for _, line := range lines {
		if p.cfg.BlockMarker != "" && strings.Contains(line, p.cfg.BlockMarker) {
			out = append(out, segment{name: strings.Trim(line, "- \t")})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].lines = append(out[len(out)-1].lines, line)
		}
	}
	return out
}

type span struct {
	marker     int // Line holding the marker
	start, end int
}

// splitSubBlocks finds sub-block ranges over the flattened block lines. A
// marker closes the previous range at its own line. Lines before the first
// marker are not part of any sub-block.
func (p *Parser) splitSubBlocks(lines []string) []span {
	var spans []span
	open := func(marker, start int) {
		if len(spans) > 0 {
			spans[len(spans)-1].end = marker
		}
		spans = append(spans, span{marker: marker, start: start})
	}
	for i, line := range lines {
		switch {
		case containsAny(line, p.cfg.SubBlockMarkers):
			open(i, i+1)
		case containsAny(line, p.cfg.InlineSubBlockMarkers):
			open(i, i)
		}
	}
	if len(spans) > 0 {
		spans[len(spans)-1].end = len(lines)
	}
	return spans
}

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

// parseValue reads the number after the first tab of a label/value line.
// Like a spreadsheet, the number may be followed by other text. Currency
// signs and thousands separators are ignored, so "1,234" reads as 1234.
func parseValue(n int, line string) (Value, error) {
	label, rest, ok := strings.Cut(line, "\t")
	v := Value{Label: strings.TrimSpace(label)}
	if !ok {
		v.Err = &LineError{Line: n, Text: line, Reason: "no tab-separated value"}
		return v, v.Err
	}

	rest = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(rest))
	m := leadingNumber.FindString(rest)
	if m == "" {
		v.Err = &LineError{Line: n, Text: line, Reason: "value is not a number"}
		return v, v.Err
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		v.Err = &LineError{Line: n, Text: line, Reason: err.Error()}
		return v, v.Err
	}
	v.Number = f
	return v, nil
}

func containsAny(s string, subs []string) bool {
	return slices.ContainsFunc(subs, func(sub string) bool {
		return sub != "" && strings.Contains(s, sub)
	})
}
