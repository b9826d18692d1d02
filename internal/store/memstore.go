package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/JonMunkholm/labdigest/internal/core"
)

type cellKey struct {
	sheet    string
	row, col int
}

// MemStore keeps everything in process memory.
type MemStore struct {
	mu        sync.RWMutex
	artifacts map[string]core.Artifact
	order     []string
	content   map[string][]byte
	sheets    map[string]map[string][][]string
	records   map[string][]core.CanonicalRecord
	cells     map[string]map[cellKey]string
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	m := &MemStore{}
	m.reset()
	return m
}

func (m *MemStore) reset() {
	m.artifacts = make(map[string]core.Artifact)
	m.order = nil
	m.content = make(map[string][]byte)
	m.sheets = make(map[string]map[string][][]string)
	m.records = make(map[string][]core.CanonicalRecord)
	m.cells = make(map[string]map[cellKey]string)
}

func (m *MemStore) CreateArtifact(_ context.Context, a core.Artifact, content []byte) (core.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Flags == nil {
		a.Flags = core.FlagSet{}
	}
	a.Flags = slices.Clone(a.Flags)
	a.CreatedAt = time.Now().UTC()

	if _, exists := m.artifacts[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.artifacts[a.ID] = a
	m.content[a.ID] = slices.Clone(content)
	m.sheets[a.ID] = make(map[string][][]string)
	return a, nil
}

func (m *MemStore) GetArtifact(_ context.Context, id string) (core.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[id]
	if !ok {
		return core.Artifact{}, notFound(id)
	}
	a.Flags = slices.Clone(a.Flags)
	return a, nil
}

func (m *MemStore) ListArtifacts(_ context.Context, kind core.ArtifactKind) ([]core.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.Artifact{}
	for _, id := range m.order {
		a := m.artifacts[id]
		if kind != "" && a.Kind != kind {
			continue
		}
		a.Flags = slices.Clone(a.Flags)
		out = append(out, a)
	}
	return out, nil
}

func (m *MemStore) ReadContent(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.content[id]
	if !ok {
		return nil, notFound(id)
	}
	return slices.Clone(c), nil
}

func (m *MemStore) DeleteArtifact(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.artifacts[id]; !ok {
		return notFound(id)
	}
	delete(m.artifacts, id)
	delete(m.content, id)
	delete(m.sheets, id)
	delete(m.records, id)
	delete(m.cells, id)
	m.order = slices.DeleteFunc(m.order, func(o string) bool { return o == id })
	return nil
}

func (m *MemStore) ReadSheet(_ context.Context, id, sheet string) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sheets, ok := m.sheets[id]
	if !ok {
		return nil, notFound(id)
	}
	rows, ok := sheets[sheet]
	if !ok {
		return nil, sheetNotFound(id, sheet)
	}
	return cloneRows(rows), nil
}

func (m *MemStore) WriteSheet(_ context.Context, id, sheet string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sheets, ok := m.sheets[id]
	if !ok {
		return notFound(id)
	}
	sheets[sheet] = cloneRows(rows)
	return nil
}

func (m *MemStore) DeleteSheet(_ context.Context, id, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sheets, ok := m.sheets[id]
	if !ok {
		return notFound(id)
	}
	if _, ok := sheets[sheet]; !ok {
		return sheetNotFound(id, sheet)
	}
	delete(sheets, sheet)
	return nil
}

func (m *MemStore) LoadFlags(_ context.Context, id string) (core.FlagSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[id]
	if !ok {
		return nil, notFound(id)
	}
	return slices.Clone(a.Flags), nil
}

func (m *MemStore) SaveFlags(_ context.Context, id string, flags core.FlagSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.artifacts[id]
	if !ok {
		return notFound(id)
	}
	a.Flags = slices.Clone(flags)
	m.artifacts[id] = a
	return nil
}

func (m *MemStore) SaveRecords(_ context.Context, digestID string, records []core.CanonicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.artifacts[digestID]; !ok {
		return notFound(digestID)
	}
	m.records[digestID] = slices.Clone(records)
	return nil
}

func (m *MemStore) Records(_ context.Context, digestID string) ([]core.CanonicalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.artifacts[digestID]; !ok {
		return nil, notFound(digestID)
	}
	return slices.Clone(m.records[digestID]), nil
}

func (m *MemStore) WriteBlock(_ context.Context, reportID, sheet string, row, col int, values [][]string) error {
	if err := validBlock(row, col); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.artifacts[reportID]; !ok {
		return notFound(reportID)
	}
	cells, ok := m.cells[reportID]
	if !ok {
		cells = make(map[cellKey]string)
		m.cells[reportID] = cells
	}
	for i, r := range values {
		for j, v := range r {
			cells[cellKey{sheet: sheet, row: row + i, col: col + j}] = v
		}
	}
	return nil
}

func (m *MemStore) ReadCells(_ context.Context, reportID, sheet string) ([]Cell, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.artifacts[reportID]; !ok {
		return nil, notFound(reportID)
	}
	out := []Cell{}
	for k, v := range m.cells[reportID] {
		if k.sheet == sheet {
			out = append(out, Cell{Row: k.row, Column: k.col, Value: v})
		}
	}
	sortCells(out)
	return out, nil
}

func (m *MemStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *MemStore) Close() error { return nil }
