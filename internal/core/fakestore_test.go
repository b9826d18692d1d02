package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// fakeStore is an in-memory ArtifactStore for pipeline tests.
type fakeStore struct {
	mu        sync.Mutex
	artifacts map[string]Artifact
	order     []string
	content   map[string][]byte
	sheets    map[string]map[string][][]string
	records   map[string][]CanonicalRecord

	failWriteSheet string // Sheet name whose writes fail
	failSave       error  // Returned by recordingStore.SaveRecords
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		artifacts: make(map[string]Artifact),
		content:   make(map[string][]byte),
		sheets:    make(map[string]map[string][][]string),
		records:   make(map[string][]CanonicalRecord),
	}
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

func (f *fakeStore) CreateArtifact(_ context.Context, a Artifact, content []byte) (Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.CreatedAt = time.Now()
	if a.Flags == nil {
		a.Flags = FlagSet{}
	}
	f.artifacts[a.ID] = a
	f.order = append(f.order, a.ID)
	f.content[a.ID] = slices.Clone(content)
	f.sheets[a.ID] = make(map[string][][]string)
	return a, nil
}

func (f *fakeStore) GetArtifact(_ context.Context, id string) (Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artifacts[id]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return a, nil
}

func (f *fakeStore) ListArtifacts(_ context.Context, kind ArtifactKind) ([]Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Artifact
	for _, id := range f.order {
		if a := f.artifacts[id]; kind == "" || a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ReadContent(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.content[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return c, nil
}

func (f *fakeStore) DeleteArtifact(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.artifacts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	delete(f.artifacts, id)
	delete(f.content, id)
	delete(f.sheets, id)
	delete(f.records, id)
	f.order = slices.DeleteFunc(f.order, func(o string) bool { return o == id })
	return nil
}

func (f *fakeStore) ReadSheet(_ context.Context, id, sheet string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sheets, ok := f.sheets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	rows, ok := sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrSheetNotFound, id, sheet)
	}
	return cloneRows(rows), nil
}

func (f *fakeStore) WriteSheet(_ context.Context, id, sheet string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sheet == f.failWriteSheet {
		return fmt.Errorf("write %s: connection refused", sheet)
	}
	sheets, ok := f.sheets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	sheets[sheet] = cloneRows(rows)
	return nil
}

func (f *fakeStore) DeleteSheet(_ context.Context, id, sheet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sheets, ok := f.sheets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	if _, ok := sheets[sheet]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrSheetNotFound, id, sheet)
	}
	delete(sheets, sheet)
	return nil
}

func (f *fakeStore) LoadFlags(_ context.Context, id string) (FlagSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	return slices.Clone(a.Flags), nil
}

func (f *fakeStore) SaveFlags(_ context.Context, id string, flags FlagSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artifacts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	a.Flags = slices.Clone(flags)
	f.artifacts[id] = a
	return nil
}

// sheetExists reports whether a sheet has been written.
func (f *fakeStore) sheetExists(id, sheet string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sheets[id][sheet]
	return ok
}

// addRaw stores a raw artifact with the given rows as its Raw Data sheet.
func (f *fakeStore) addRaw(id, name string, rows [][]string, flags ...Flag) Artifact {
	a, _ := f.CreateArtifact(context.Background(), Artifact{ID: id, Name: name, Kind: KindRaw, Flags: FlagSet(flags)}, nil)
	f.sheets[id][SheetRaw] = cloneRows(rows)
	return a
}

// recordingStore adds RecordSink to fakeStore.
type recordingStore struct {
	*fakeStore
}

func (r recordingStore) SaveRecords(_ context.Context, digestID string, records []CanonicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	r.records[digestID] = slices.Clone(records)
	return nil
}

// exportRow builds an 18-column lab-access export row.
func exportRow(account, advisor, name, description string) []string {
	row := make([]string, 18)
	row[1] = account
	row[4] = advisor
	row[5] = name
	row[6] = "1.5"
	row[8] = "Confocal"
	row[10] = description
	row[11] = "03/04/2024"
	row[13] = "45.00"
	return row
}

// exportHeader is the two header rows an export carries before data.
var exportHeader = [][]string{
	{"Lab Access Report"},
	{"", "Account", "", "", "Advisor", "User", "Hours"},
}

// withHeader prepends exportHeader to data rows.
func withHeader(rows ...[]string) [][]string {
	return append(cloneRows(exportHeader), rows...)
}
