package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// LookupDictionary maps a lower-cased name to an enrichment value.
// It is immutable once built.
type LookupDictionary struct {
	entries map[string]string
}

// lookupKey lower-cases and NFC-normalizes a name so composed and
// decomposed accents produce the same key.
func lookupKey(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

// NewLookupDictionary builds a dictionary from a plain map.
func NewLookupDictionary(m map[string]string) LookupDictionary {
	entries := make(map[string]string, len(m))
	for k, v := range m {
		entries[lookupKey(k)] = v
	}
	return LookupDictionary{entries: entries}
}

// ParseLookupDictionary reads a flat JSON object of name to value.
func ParseLookupDictionary(r io.Reader) (LookupDictionary, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return LookupDictionary{}, fmt.Errorf("%w: %v", ErrDictionary, err)
	}

	m := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			m[k] = val
		case json.Number:
			m[k] = val.String()
		default:
			return LookupDictionary{}, fmt.Errorf("%w: value for %q is not a string", ErrDictionary, k)
		}
	}
	return NewLookupDictionary(m), nil
}

// LoadLookupDictionary reads a dictionary file. An empty path yields an
// empty dictionary.
func LoadLookupDictionary(path string) (LookupDictionary, error) {
	if path == "" {
		return NewLookupDictionary(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return LookupDictionary{}, fmt.Errorf("%w: %v", ErrDictionary, err)
	}
	defer f.Close()

	d, err := ParseLookupDictionary(f)
	if err != nil {
		return LookupDictionary{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Lookup returns the value for name, matched case-insensitively.
func (d LookupDictionary) Lookup(name string) (string, bool) {
	v, ok := d.entries[lookupKey(name)]
	return v, ok
}

// Len returns the number of entries.
func (d LookupDictionary) Len() int {
	return len(d.entries)
}

// DictionaryPaths locates the two lookup dictionaries.
type DictionaryPaths struct {
	EID        string
	Department string
}

// LoadDictionaries reads the EID and Department dictionaries concurrently.
func LoadDictionaries(ctx context.Context, paths DictionaryPaths) (*DictionaryEnricher, error) {
	var eid, dept LookupDictionary

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		eid, err = LoadLookupDictionary(paths.EID)
		return err
	})
	g.Go(func() error {
		var err error
		dept, err = LoadLookupDictionary(paths.Department)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewDictionaryEnricher(eid, dept), nil
}

// DictionaryEnricher fills EID and Department from lookup dictionaries.
type DictionaryEnricher struct {
	eid        LookupDictionary
	department LookupDictionary
}

// NewDictionaryEnricher creates an enricher over an EID-by-name dictionary
// and a Department-by-advisor dictionary.
func NewDictionaryEnricher(eid, department LookupDictionary) *DictionaryEnricher {
	return &DictionaryEnricher{eid: eid, department: department}
}

// Sizes returns the entry counts of the EID and Department dictionaries.
func (e *DictionaryEnricher) Sizes() (eid, department int) {
	return e.eid.Len(), e.department.Len()
}

// Enrich updates records in place and returns how many EIDs and
// departments were filled. Unmatched keys leave fields unchanged, and an
// EID is only replaced while it still holds the placeholder.
func (e *DictionaryEnricher) Enrich(records []CanonicalRecord) (eids, departments int) {
	for i := range records {
		rec := &records[i]
		if rec.EID == EIDPlaceholder {
			if v, ok := e.eid.Lookup(rec.FullName); ok {
				rec.EID = v
				eids++
			}
		}
		if v, ok := e.department.Lookup(rec.Advisor); ok {
			rec.Department = v
			departments++
		}
	}
	return eids, departments
}
