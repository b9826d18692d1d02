package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/labdigest/internal/logging"
	"github.com/JonMunkholm/labdigest/internal/source"
	"github.com/google/uuid"
)

// ServiceConfig holds the injected tables and paths a Service needs.
type ServiceConfig struct {
	Layout       SourceLayout
	Dictionaries DictionaryPaths
	RunWait      time.Duration // How long a run waits for another to finish
}

// Service provides the digestion pipeline over an artifact store.
type Service struct {
	store     ArtifactStore
	flags     *FlagStore
	sanitizer *Sanitizer
	remapper  *ColumnRemapper
	committer *DigestCommitter
	layout    SourceLayout
	dicts     DictionaryPaths
	runs      *RunLimiter
	newID     func() string
}

// NewService creates a new Service instance.
func NewService(store ArtifactStore, cfg ServiceConfig) *Service {
	flags := NewFlagStore(store)
	return &Service{
		store:     store,
		flags:     flags,
		sanitizer: NewSanitizer(store, flags, cfg.Layout.HeaderRows),
		remapper:  NewColumnRemapper(cfg.Layout),
		committer: NewDigestCommitter(store, flags),
		layout:    cfg.Layout,
		dicts:     cfg.Dictionaries,
		runs:      NewRunLimiter(cfg.RunWait),
		newID:     uuid.NewString,
	}
}

// Store returns the underlying artifact store.
func (s *Service) Store() ArtifactStore {
	return s.store
}

// Flags returns the FlagStore the pipeline gates on.
func (s *Service) Flags() *FlagStore {
	return s.flags
}

// WaitForRuns blocks until an in-flight run finishes or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.runs.WaitForDrain(ctx)
}

// Outcome is what a run did with one artifact.
type Outcome string

const (
	OutcomeSanitized   Outcome = "sanitized"   // Snapshot written this run
	OutcomeSkipped     Outcome = "skipped"     // Already sanitized; snapshot reused
	OutcomeQuarantined Outcome = "quarantined" // Rows held for correction, nothing committed
	OutcomeDigested    Outcome = "digested"    // Digest artifact written
)

// DigestResult reports one artifact's outcome in a run.
type DigestResult struct {
	ArtifactID  string   `json:"artifact_id"`
	Name        string   `json:"name"`
	Outcome     Outcome  `json:"outcome"`
	Rows        int      `json:"rows"`
	Records     int      `json:"records"`
	Quarantined int      `json:"quarantined"`
	EIDsFilled  int      `json:"eids_filled"`
	DeptsFilled int      `json:"departments_filled"`
	DigestID    string   `json:"digest_id,omitempty"`
	DigestName  string   `json:"digest_name,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// RunReport summarizes one batch run.
type RunReport struct {
	RunID    string         `json:"run_id"`
	Results  []DigestResult `json:"results"`
	Duration time.Duration  `json:"duration"`
}

// Count returns how many results had the given outcome.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Ingest stores an uploaded document. Raw exports are decoded, parsed into
// the "Raw Data" sheet and flagged converted; text reports keep their
// decoded text as content.
func (s *Service) Ingest(ctx context.Context, fileName string, kind ArtifactKind, content []byte) (Artifact, error) {
	if len(content) == 0 {
		return Artifact{}, fmt.Errorf("%s: %w", fileName, ErrEmptyFile)
	}
	text, err := source.Decode(content)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", fileName, err)
	}

	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	logger := logging.WithFields(ctx, append([]any{"file", fileName, "kind", kind}, requesterFields(ctx)...)...)

	switch kind {
	case KindRaw:
		rows, warnings, err := source.ReadTable(text)
		if err != nil {
			return Artifact{}, fmt.Errorf("%s: %w", fileName, err)
		}
		if len(rows) == 0 {
			return Artifact{}, fmt.Errorf("%s: %w", fileName, ErrEmptyFile)
		}
		for _, w := range warnings {
			logger.Warn("skipped unreadable row", "row", w.Row, "message", w.Message)
		}

		a, err := s.store.CreateArtifact(ctx, Artifact{ID: s.newID(), Name: name, Kind: kind}, content)
		if err != nil {
			return Artifact{}, fmt.Errorf("create artifact: %w", err)
		}
		if err := s.store.WriteSheet(ctx, a.ID, SheetRaw, rows); err != nil {
			return Artifact{}, fmt.Errorf("write raw rows for %s: %w", a.ID, err)
		}
		if err := s.flags.Set(ctx, a.ID, FlagConverted); err != nil {
			return Artifact{}, err
		}
		a.Flags = FlagSet{FlagConverted}
		logger.Info("ingested export", "artifact_id", a.ID, "rows", len(rows))
		return a, nil

	case KindStatsMonthly, KindStatsCumulative, KindReport:
		a, err := s.store.CreateArtifact(ctx, Artifact{ID: s.newID(), Name: name, Kind: kind}, []byte(text))
		if err != nil {
			return Artifact{}, fmt.Errorf("create artifact: %w", err)
		}
		logger.Info("ingested document", "artifact_id", a.ID, "bytes", len(text))
		return a, nil

	default:
		return Artifact{}, fmt.Errorf("cannot ingest artifacts of kind %q", kind)
	}
}

// ListArtifacts returns stored artifacts of a kind, or all kinds when kind is empty.
func (s *Service) ListArtifacts(ctx context.Context, kind ArtifactKind) ([]Artifact, error) {
	return s.store.ListArtifacts(ctx, kind)
}

// pending returns raw artifacts that have not been digested.
func (s *Service) pending(ctx context.Context) ([]Artifact, error) {
	all, err := s.store.ListArtifacts(ctx, KindRaw)
	if err != nil {
		return nil, fmt.Errorf("list raw artifacts: %w", err)
	}
	out := make([]Artifact, 0, len(all))
	for _, a := range all {
		if !a.Flags.Has(FlagDigested) {
			out = append(out, a)
		}
	}
	return out, nil
}

// SanitizeAll writes the sanitized snapshot of every pending raw artifact.
func (s *Service) SanitizeAll(ctx context.Context) (*RunReport, error) {
	return s.run(ctx, "sanitize", func(ctx context.Context, a Artifact, _ *DictionaryEnricher) (DigestResult, error) {
		rows, skipped, err := s.sanitizer.Run(ctx, a.ID)
		if err != nil {
			return DigestResult{}, err
		}
		res := DigestResult{ArtifactID: a.ID, Name: a.Name, Outcome: OutcomeSanitized, Rows: len(rows)}
		if skipped {
			res.Outcome = OutcomeSkipped
		}
		return res, nil
	}, false)
}

// DigestAll runs the full pipeline over every pending raw artifact.
// Dictionaries are loaded once for the run.
func (s *Service) DigestAll(ctx context.Context) (*RunReport, error) {
	return s.run(ctx, "digest", s.digest, true)
}

type stageFunc func(ctx context.Context, a Artifact, enricher *DictionaryEnricher) (DigestResult, error)

func (s *Service) run(ctx context.Context, op string, stage stageFunc, needDicts bool) (*RunReport, error) {
	if err := s.runs.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.runs.Release()

	start := time.Now()
	report := &RunReport{RunID: s.newID(), Results: []DigestResult{}}
	logger := logging.WithFields(ctx, "run_id", report.RunID, "op", op)

	var enricher *DictionaryEnricher
	if needDicts {
		var err error
		enricher, err = LoadDictionaries(ctx, s.dicts)
		if err != nil {
			return nil, err
		}
		eids, depts := enricher.Sizes()
		logger.Debug("dictionaries loaded", "eid_entries", eids, "department_entries", depts)
	}

	artifacts, err := s.pending(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("run started", "artifacts", len(artifacts))

	for _, a := range artifacts {
		res, err := stage(ctx, a, enricher)
		if err != nil {
			logger.Error("run aborted", "artifact_id", a.ID, "error", err)
			return nil, fmt.Errorf("%s %s: %w", op, a.Name, err)
		}
		logger.Info("artifact processed",
			"artifact_id", a.ID,
			"name", a.Name,
			"outcome", res.Outcome,
			"records", res.Records,
			"quarantined", res.Quarantined,
		)
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(start)
	logger.Info("run finished",
		"artifacts", len(report.Results),
		"digested", report.Count(OutcomeDigested),
		"quarantined", report.Count(OutcomeQuarantined),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// digest runs every stage for one artifact.
func (s *Service) digest(ctx context.Context, a Artifact, enricher *DictionaryEnricher) (DigestResult, error) {
	res := DigestResult{ArtifactID: a.ID, Name: a.Name}

	rows, _, err := s.sanitizer.Run(ctx, a.ID)
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)

	records, warnings := s.remapper.Remap(rows)
	for _, w := range warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}

	kept, quarantined := NormalizeNames(records)
	res.EIDsFilled, res.DeptsFilled = enricher.Enrich(kept)

	commit, err := s.committer.Commit(ctx, a, kept, quarantined)
	if err != nil {
		return res, err
	}

	res.Records = len(kept)
	res.Quarantined = commit.Quarantined
	if commit.Committed {
		res.Outcome = OutcomeDigested
		res.DigestID = commit.DigestID
		res.DigestName = commit.DigestName
	} else {
		res.Outcome = OutcomeQuarantined
	}
	return res, nil
}

// Quarantine returns the rows held back from an artifact's digest.
// An artifact without a quarantine sheet has none.
func (s *Service) Quarantine(ctx context.Context, id string) ([]QuarantineRecord, error) {
	rows, err := s.store.ReadSheet(ctx, id, SheetQuarantine)
	if errors.Is(err, ErrSheetNotFound) {
		return []QuarantineRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quarantine for %s: %w", id, err)
	}

	out := make([]QuarantineRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		q, err := ParseQuarantineRow(row)
		if err != nil {
			return nil, fmt.Errorf("quarantine for %s: %w", id, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// ApplyFix corrects a name cell in the sanitized snapshot. rowNumber is the
// display row reported in the quarantine. The next digest run picks up the
// corrected value.
func (s *Service) ApplyFix(ctx context.Context, id string, rowNumber int, field NameField, value string) error {
	if err := s.runs.Acquire(ctx); err != nil {
		return err
	}
	defer s.runs.Release()

	col, ok := s.layout.ColumnFor(field)
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidFix, field)
	}

	flags, err := s.flags.Flags(ctx, id)
	if err != nil {
		return err
	}
	if flags.Has(FlagDigested) {
		return fmt.Errorf("artifact %s: %w: %s", id, ErrDuplicateProcessing, FlagDigested)
	}

	rows, err := s.store.ReadSheet(ctx, id, SheetSanitized)
	if err != nil {
		return fmt.Errorf("read sanitized snapshot for %s: %w", id, err)
	}
	idx := rowNumber - DisplayRowOffset
	if idx < 0 || idx >= len(rows) {
		return fmt.Errorf("%w: row %d is outside the sanitized data", ErrInvalidFix, rowNumber)
	}

	row := rows[idx]
	for len(row) <= col {
		row = append(row, "")
	}
	row[col] = strings.TrimSpace(value)
	rows[idx] = row

	if err := s.store.WriteSheet(ctx, id, SheetSanitized, rows); err != nil {
		return fmt.Errorf("write sanitized snapshot for %s: %w", id, err)
	}

	logging.WithFields(ctx, "artifact_id", id).Info("applied fix",
		"row", rowNumber,
		"field", field,
	)
	return nil
}
