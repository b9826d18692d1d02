package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/JonMunkholm/labdigest/internal/logging"
)

// formulaErrorPattern matches spreadsheet error values such as #REF! or #NAME?.
var formulaErrorPattern = regexp.MustCompile(`(?m)^#.*?[!?]$`)

// SanitizeRows drops the leading header rows, removes rows containing a
// formula error, and trims every remaining cell. Row order and width are
// preserved.
func SanitizeRows(rows [][]string, headerRows int) [][]string {
	if headerRows < 0 {
		headerRows = 0
	}
	if len(rows) <= headerRows {
		return [][]string{}
	}

	out := make([][]string, 0, len(rows)-headerRows)
	for _, row := range rows[headerRows:] {
		if slices.ContainsFunc(row, formulaErrorPattern.MatchString) {
			continue
		}
		clean := make([]string, len(row))
		for i, cell := range row {
			clean[i] = strings.TrimSpace(cell)
		}
		out = append(out, clean)
	}
	return out
}

// Sanitizer produces the "Sanitized Data" snapshot of a raw artifact.
type Sanitizer struct {
	store      ArtifactStore
	flags      *FlagStore
	headerRows int
}

// NewSanitizer creates a Sanitizer. headerRows is the number of leading
// rows the export carries before data.
func NewSanitizer(store ArtifactStore, flags *FlagStore, headerRows int) *Sanitizer {
	return &Sanitizer{store: store, flags: flags, headerRows: headerRows}
}

// Run returns the sanitized rows of an artifact. If the artifact is already
// flagged sanitized the stored snapshot is returned and skipped is true;
// otherwise the snapshot is computed, written, and the flag set.
func (s *Sanitizer) Run(ctx context.Context, id string) (rows [][]string, skipped bool, err error) {
	done, err := s.flags.Has(ctx, id, FlagSanitized)
	if err != nil {
		return nil, false, err
	}
	if done {
		rows, err := s.store.ReadSheet(ctx, id, SheetSanitized)
		if err != nil {
			return nil, false, fmt.Errorf("load sanitized snapshot for %s: %w", id, err)
		}
		return rows, true, nil
	}

	raw, err := s.store.ReadSheet(ctx, id, SheetRaw)
	if err != nil {
		return nil, false, fmt.Errorf("read raw rows for %s: %w", id, err)
	}
	rows = SanitizeRows(raw, s.headerRows)

	if err := s.store.WriteSheet(ctx, id, SheetSanitized, rows); err != nil {
		return nil, false, fmt.Errorf("write sanitized snapshot for %s: %w", id, err)
	}
	if err := s.flags.Set(ctx, id, FlagSanitized); err != nil {
		if !errors.Is(err, ErrDuplicateProcessing) {
			return nil, false, err
		}
		logging.FromContext(ctx).Warn("sanitized flag set concurrently", "artifact_id", id)
	}

	logging.FromContext(ctx).Debug("sanitized artifact",
		"artifact_id", id,
		"raw_rows", len(raw),
		"rows", len(rows),
	)
	return rows, false, nil
}
