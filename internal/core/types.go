package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ArtifactKind classifies a stored artifact.
type ArtifactKind string

const (
	KindRaw             ArtifactKind = "raw"              // Tabular lab-access export
	KindDigest          ArtifactKind = "digest"           // Canonical digest produced by the pipeline
	KindStatsMonthly    ArtifactKind = "stats-monthly"    // Monthly usage text report
	KindStatsCumulative ArtifactKind = "stats-cumulative" // Year-to-date usage text report
	KindReport          ArtifactKind = "report"           // Financial report spreadsheet
)

// Kinds lists every artifact kind in display order.
var Kinds = []ArtifactKind{KindRaw, KindDigest, KindStatsMonthly, KindStatsCumulative, KindReport}

// ParseArtifactKind validates a kind string.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	k := ArtifactKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// IsStats reports whether the kind is one of the usage text report kinds.
func (k ArtifactKind) IsStats() bool {
	return k == KindStatsMonthly || k == KindStatsCumulative
}

// Sheet names for artifacts derived from a source.
const (
	SheetRaw        = "Raw Data"
	SheetSanitized  = "Sanitized Data"
	SheetQuarantine = "Fix These Rows"
	SheetDigest     = "Digested Data"
)

// Artifact is a stored document and its processing flags.
type Artifact struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      ArtifactKind `json:"kind"`
	SourceID  string       `json:"source_id,omitempty"` // Raw artifact a digest was built from
	Flags     FlagSet      `json:"flags"`
	CreatedAt time.Time    `json:"created_at"`
}

// State returns the processing state derived from the artifact's flags.
func (a Artifact) State() State {
	return a.Flags.State()
}

// FlagStorage persists the processing flags of an artifact.
// A missing flag record means "no flags".
type FlagStorage interface {
	LoadFlags(ctx context.Context, id string) (FlagSet, error)
	SaveFlags(ctx context.Context, id string, flags FlagSet) error
}

// ArtifactStore is the storage collaborator consumed by the pipeline.
// Implementations return ErrArtifactNotFound and ErrSheetNotFound
// (possibly wrapped) for missing entries.
type ArtifactStore interface {
	FlagStorage

	CreateArtifact(ctx context.Context, a Artifact, content []byte) (Artifact, error)
	GetArtifact(ctx context.Context, id string) (Artifact, error)
	ListArtifacts(ctx context.Context, kind ArtifactKind) ([]Artifact, error)
	ReadContent(ctx context.Context, id string) ([]byte, error)
	// DeleteArtifact removes an artifact with its sheets and records.
	DeleteArtifact(ctx context.Context, id string) error

	ReadSheet(ctx context.Context, id, sheet string) ([][]string, error)
	WriteSheet(ctx context.Context, id, sheet string, rows [][]string) error
	DeleteSheet(ctx context.Context, id, sheet string) error
}

// RecordSink is implemented by stores that also keep digested records in
// typed form. The committer uses it when available.
type RecordSink interface {
	SaveRecords(ctx context.Context, digestID string, records []CanonicalRecord) error
}

// DigestName derives the digest artifact name from a raw artifact name.
func DigestName(rawName string) string {
	if strings.Contains(rawName, "raw") {
		return strings.Replace(rawName, "raw", "digested", 1)
	}
	return rawName + " digested"
}
