package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/logging"
	"github.com/JonMunkholm/labdigest/internal/source"
)

// SheetSink writes a rectangular block of cells into a named sheet of a
// report. row and col are 1-based and address the top-left cell.
type SheetSink interface {
	WriteBlock(ctx context.Context, reportID, sheet string, row, col int, values [][]string) error
}

// InsertResult reports what happened to one stats artifact.
type InsertResult struct {
	ArtifactID string   `json:"artifact_id"`
	Name       string   `json:"name"`
	Cadence    Cadence  `json:"cadence,omitempty"`
	Month      string   `json:"month,omitempty"`
	Placements int      `json:"placements"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"` // Set when the artifact was left for a later run
}

// Inserter copies parsed stats reports into a financial report.
type Inserter struct {
	store  core.ArtifactStore
	flags  *core.FlagStore
	sink   SheetSink
	parser *Parser
	mapper *LayoutMapper
	runs   *core.RunLimiter
}

// NewInserter creates an Inserter reading stats artifacts from store and
// writing cells to sink.
func NewInserter(store core.ArtifactStore, sink SheetSink, parser *Parser, mapper *LayoutMapper) *Inserter {
	return &Inserter{
		store:  store,
		flags:  core.NewFlagStore(store),
		sink:   sink,
		parser: parser,
		mapper: mapper,
		runs:   core.NewRunLimiter(0),
	}
}

// InsertAll writes every stats artifact not yet flagged inserted into the
// report, cumulative reports first. An artifact whose month cannot be read
// is reported and left unflagged; storage failures abort.
func (in *Inserter) InsertAll(ctx context.Context, reportID string) ([]InsertResult, error) {
	if err := in.runs.Acquire(ctx); err != nil {
		return nil, err
	}
	defer in.runs.Release()

	report, err := in.store.GetArtifact(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Kind != core.KindReport {
		return nil, fmt.Errorf("%w: %s is a %s artifact, not a report", core.ErrArtifactNotFound, reportID, report.Kind)
	}

	logger := logging.WithFields(ctx, "report_id", reportID)
	results := []InsertResult{}
	for _, kind := range []core.ArtifactKind{core.KindStatsCumulative, core.KindStatsMonthly} {
		artifacts, err := in.store.ListArtifacts(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list %s artifacts: %w", kind, err)
		}
		for _, a := range artifacts {
			if a.Flags.Has(core.FlagInserted) {
				continue
			}
			res, err := in.insert(ctx, report.ID, a)
			if err != nil {
				logger.Error("stats insertion aborted", "artifact_id", a.ID, "error", err)
				return nil, fmt.Errorf("insert %s: %w", a.Name, err)
			}
			logger.Info("stats report processed",
				"artifact_id", a.ID,
				"month", res.Month,
				"cadence", res.Cadence,
				"placements", res.Placements,
				"warnings", len(res.Warnings),
			)
			results = append(results, res)
		}
	}
	return results, nil
}

func (in *Inserter) insert(ctx context.Context, reportID string, a core.Artifact) (InsertResult, error) {
	res := InsertResult{ArtifactID: a.ID, Name: a.Name}

	cadence, err := CadenceFor(a.Kind)
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	res.Cadence = cadence

	month, err := ReportMonth(a.Name)
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	res.Month = month

	content, err := in.store.ReadContent(ctx, a.ID)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", a.ID, err)
	}
	text, err := source.Decode(content)
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}

	parsed, warnings := in.parser.Parse(text)
	for _, w := range warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}

	sheet := in.mapper.Layout().Sheet
	for _, p := range in.mapper.Plan(parsed, month, cadence) {
		if len(p.Values) == 0 {
			continue
		}
		if err := in.sink.WriteBlock(ctx, reportID, sheet, p.At.Row, p.At.Column, p.Values); err != nil {
			return res, fmt.Errorf("write sub-block %d: %w", p.SubBlock, err)
		}
		res.Placements++
	}

	if err := in.flags.Set(ctx, a.ID, core.FlagInserted); err != nil && !errors.Is(err, core.ErrDuplicateProcessing) {
		return res, err
	}
	return res, nil
}
