package store

// pgconvert.go turns digest cell text into pgtype values for the typed
// digest_records columns.
//
// Digest cells are already normalized, but older digests and hand fixes
// can still carry currency symbols, accounting negatives or two-digit years.
// Every ToPg* function returns Valid=false for empty or unreadable input so
// the column is stored as NULL.

import (
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future are moved back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
	}
	clockLayouts = []string{
		"3:04 PM", "3:04PM", "3:04:05 PM", "15:04", "15:04:05",
	}
)

// ToPgText converts a string to pgtype.Text.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a session date to pgtype.Date, accepting 2-digit years.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ToPgTime converts a clock time such as "1:30 PM" to pgtype.Time.
func ToPgTime(s string) pgtype.Time {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return pgtype.Time{Valid: false}
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second
		return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
	}
	return pgtype.Time{Valid: false}
}

// ToPgNumeric converts hours or a charge to pgtype.Numeric.
// Handles currency symbols, thousands separators and "(123.45)" negatives.
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt2 converts a usage code to pgtype.Int2.
// Anything other than a small positive integer is stored as NULL.
func ToPgInt2(s string) pgtype.Int2 {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 4 {
		return pgtype.Int2{Valid: false}
	}
	var n int16
	for _, r := range s {
		if r < '0' || r > '9' {
			return pgtype.Int2{Valid: false}
		}
		n = n*10 + int16(r-'0')
	}
	if n == 0 {
		return pgtype.Int2{Valid: false}
	}
	return pgtype.Int2{Int16: n, Valid: true}
}
