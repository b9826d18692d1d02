// Package store persists artifacts, their sheets and flags, digest records
// and report cells.
//
// Three backends share one contract: MemStore for tests and throwaway runs,
// SQLiteStore for a single operator's machine, and PGStore for a shared
// deployment.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/JonMunkholm/labdigest/internal/core"
)

// Store is everything the pipeline and the stats inserter need from storage.
type Store interface {
	core.ArtifactStore
	core.RecordSink

	// Records returns the typed records saved for a digest.
	Records(ctx context.Context, digestID string) ([]core.CanonicalRecord, error)

	// WriteBlock writes a rectangle of cells with its top-left cell at the
	// 1-based row and col of a report sheet, replacing existing values.
	WriteBlock(ctx context.Context, reportID, sheet string, row, col int, values [][]string) error
	// ReadCells returns the written cells of a report sheet ordered by row
	// then column.
	ReadCells(ctx context.Context, reportID, sheet string) ([]Cell, error)

	// Reset removes all stored data.
	Reset(ctx context.Context) error
	Close() error
}

// Cell is one written report cell.
type Cell struct {
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Value  string `json:"value"`
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

func sortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Column < cells[j].Column
	})
}

func validBlock(row, col int) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell (%d, %d) is outside the sheet", row, col)
	}
	return nil
}

func encodeRows(rows [][]string) ([]byte, error) {
	if rows == nil {
		rows = [][]string{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return b, nil
}

func decodeRows(b []byte) ([][]string, error) {
	var rows [][]string
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

func encodeFlags(flags core.FlagSet) ([]byte, error) {
	b, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("encode flags: %w", err)
	}
	return b, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", core.ErrArtifactNotFound, id)
}

func sheetNotFound(id, sheet string) error {
	return fmt.Errorf("%w: %s/%s", core.ErrSheetNotFound, id, sheet)
}
