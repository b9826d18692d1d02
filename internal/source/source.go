// Package source turns uploaded export bytes into text and rows.
//
// Exports arrive from Windows tooling as UTF-8 with or without a byte order
// mark, or as UTF-16. Everything is normalized to UTF-8 before parsing.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseWarning is a non-fatal problem found while reading a table.
type ParseWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Decode converts raw bytes to UTF-8 text. UTF-8 and UTF-16 byte order
// marks select the decoding and are stripped; without one the input is read
// as UTF-8 with invalid sequences replaced by U+FFFD.
func Decode(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("encoding error: %w", err)
	}
	return string(out), nil
}

// Lines splits text into lines, accepting both \n and \r\n endings.
// A trailing newline does not produce an empty final line.
func Lines(text string) []string {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// DetectDelimiter picks tab when the first line contains one, else comma.
func DetectDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	if strings.Contains(first, "\t") {
		return '\t'
	}
	return ','
}

// ReadTable parses delimited text into rows. Rows may have differing widths;
// rows the reader cannot parse are skipped and reported as warnings.
func ReadTable(text string) ([][]string, []ParseWarning, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = DetectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	var warnings []ParseWarning
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				warnings = append(warnings, ParseWarning{Row: rowNum, Message: fmt.Sprintf("parse error: %v", perr.Err)})
				continue
			}
			return nil, warnings, fmt.Errorf("invalid csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, warnings, nil
}

// WriteTSV renders rows as tab-separated text, one row per line.
func WriteTSV(rows [][]string) []byte {
	var b bytes.Buffer
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(row, "\t"))
	}
	return b.Bytes()
}
