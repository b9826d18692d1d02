package core

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// Word runs of two or more characters, or a single letter followed by a
	// period (an initial).
	nameTokenPattern     = regexp.MustCompile(`\b\w[a-zA-Z]+\b|[a-zA-Z]\.`)
	nameDelimiterPattern = regexp.MustCompile(`[\s.\-]`)
)

type nameToken struct {
	text       string
	start, end int // Byte offsets in the lower-cased field, period excluded
}

// NormalizeName rewrites a name into "Last, First[ Middle...]" form.
//
// Components are word runs and initials. When the field contains a comma
// the components before it form the surname; otherwise the last component
// is the surname. Components joined by a hyphen are kept together. Errors
// are *NameParseError.
func NormalizeName(raw string) (string, error) {
	lower := strings.ToLower(raw)
	if strings.TrimSpace(lower) == "" {
		return "", &NameParseError{Value: raw, Reason: "empty name"}
	}

	locs := nameTokenPattern.FindAllStringIndex(lower, -1)
	if len(locs) == 0 {
		return "", &NameParseError{Value: raw, Reason: "no name components"}
	}
	tokens := make([]nameToken, len(locs))
	for i, loc := range locs {
		start, end := loc[0], loc[1]
		if lower[end-1] == '.' {
			end--
		}
		tokens[i] = nameToken{text: capitalize(lower[start:end]), start: start, end: end}
	}
	if t, ok := trailingInitial(lower, tokens[len(tokens)-1]); ok {
		tokens = append(tokens, t)
	}

	delims := nameDelimiterPattern.FindAllStringIndex(lower, -1)
	if len(delims) == 0 {
		return "", &NameParseError{Value: raw, Reason: "no delimiters between name components"}
	}

	for _, d := range delims {
		if lower[d[0]] != '-' {
			continue
		}
		merged, ok := mergeHyphen(tokens, d[0])
		if !ok {
			return "", &NameParseError{Value: raw, Reason: "hyphen is not between two name components"}
		}
		tokens = merged
	}

	var surname, given []nameToken
	if comma := strings.IndexByte(lower, ','); comma >= 0 {
		for _, t := range tokens {
			if t.start < comma {
				surname = append(surname, t)
			} else {
				given = append(given, t)
			}
		}
	} else {
		surname = tokens[len(tokens)-1:]
		given = tokens[:len(tokens)-1]
	}
	if len(surname) == 0 || len(given) == 0 {
		return "", &NameParseError{Value: raw, Reason: "cannot separate surname from given names"}
	}

	name := joinTokens(surname) + ", " + joinTokens(given)
	return strings.TrimRight(name, ", "), nil
}

// trailingInitial finds a bare letter ending a "Last, First I" field, the
// form NormalizeName itself produces for middle initials.
func trailingInitial(lower string, last nameToken) (nameToken, bool) {
	trimmed := strings.TrimRight(lower, " \t")
	n := len(trimmed)
	if n < 2 || !strings.Contains(trimmed, ",") || last.end >= n {
		return nameToken{}, false
	}
	c := trimmed[n-1]
	if c < 'a' || c > 'z' || trimmed[n-2] != ' ' {
		return nameToken{}, false
	}
	return nameToken{text: strings.ToUpper(trimmed[n-1:]), start: n - 1, end: n}, true
}

// mergeHyphen joins the tokens ending at and starting right after pos.
func mergeHyphen(tokens []nameToken, pos int) ([]nameToken, bool) {
	for i := 0; i+1 < len(tokens); i++ {
		left, right := tokens[i], tokens[i+1]
		if left.end != pos || right.start != pos+1 {
			continue
		}
		joined := nameToken{text: left.text + "-" + right.text, start: left.start, end: right.end}
		out := make([]nameToken, 0, len(tokens)-1)
		out = append(out, tokens[:i]...)
		out = append(out, joined)
		out = append(out, tokens[i+2:]...)
		return out, true
	}
	return nil, false
}

func joinTokens(tokens []nameToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

// capitalize upper-cases the first rune and leaves the rest unchanged.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// NormalizeNames rewrites the full-name and advisor fields of every record.
// Records whose fields cannot be parsed are removed from the returned slice
// and reported as quarantine entries, keeping source order for both.
func NormalizeNames(records []CanonicalRecord) ([]CanonicalRecord, []QuarantineRecord) {
	kept := make([]CanonicalRecord, 0, len(records))
	var quarantined []QuarantineRecord

	for i, rec := range records {
		fullName, err := NormalizeName(rec.FullName)
		if err != nil {
			quarantined = append(quarantined, newQuarantine(i, FieldFullName, rec.FullName, rec, err))
			continue
		}
		rec.FullName = fullName

		advisor, err := NormalizeName(rec.Advisor)
		if err != nil {
			quarantined = append(quarantined, newQuarantine(i, FieldAdvisor, rec.Advisor, rec, err))
			continue
		}
		rec.Advisor = advisor

		kept = append(kept, rec)
	}
	return kept, quarantined
}

func newQuarantine(index int, field NameField, value string, rec CanonicalRecord, err error) QuarantineRecord {
	reason := err.Error()
	if npe, ok := err.(*NameParseError); ok {
		reason = npe.Reason
	}
	return QuarantineRecord{
		Field:     field,
		Value:     value,
		RowNumber: DisplayRow(index),
		Reason:    reason,
		Record:    rec,
	}
}
