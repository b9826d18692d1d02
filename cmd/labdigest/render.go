package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/format"
	"github.com/JonMunkholm/labdigest/internal/stats"
)

const (
	nameWidth   = 40
	reasonWidth = 50
)

func renderArtifacts(m format.Mode, artifacts []core.Artifact) string {
	tb := format.NewTable(m)
	tb.Header("ID", "Name", "Kind", "State", "Inserted", "Created")
	for _, a := range artifacts {
		tb.Row(
			a.ID,
			format.Truncate(a.Name, nameWidth),
			a.Kind,
			a.State(),
			format.Mark(a.Flags.Has(core.FlagInserted)),
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	tb.Footer("", fmt.Sprintf("%d artifacts", len(artifacts)))
	return tb.String()
}

// renderRun renders a run report followed by its warnings, one per line.
func renderRun(m format.Mode, r *core.RunReport) string {
	tb := format.NewTable(m)
	tb.Header("Artifact", "Name", "Outcome", "Rows", "Records", "Quarantined", "EIDs", "Depts", "Digest")
	tb.Columns(
		format.ColumnConfig{Number: 4, Align: format.AlignRight},
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
		format.ColumnConfig{Number: 7, Align: format.AlignRight},
		format.ColumnConfig{Number: 8, Align: format.AlignRight},
	)
	for _, res := range r.Results {
		tb.Row(res.ArtifactID, format.Truncate(res.Name, nameWidth), res.Outcome,
			res.Rows, res.Records, res.Quarantined, res.EIDsFilled, res.DeptsFilled, res.DigestName)
	}

	var b strings.Builder
	b.WriteString(tb.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "run %s: %d digested, %d quarantined, %d sanitized, %d skipped in %s\n",
		r.RunID,
		r.Count(core.OutcomeDigested),
		r.Count(core.OutcomeQuarantined),
		r.Count(core.OutcomeSanitized),
		r.Count(core.OutcomeSkipped),
		r.Duration.Round(time.Millisecond),
	)
	for _, res := range r.Results {
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "  ! %s: %s\n", res.Name, w)
		}
	}
	return b.String()
}

func renderQuarantine(m format.Mode, records []core.QuarantineRecord) string {
	tb := format.NewTable(m)
	tb.Header("Row", "Field", "Value", "Reason", "Account", "Date")
	tb.Columns(format.ColumnConfig{Number: 1, Align: format.AlignRight})
	for _, q := range records {
		tb.Row(q.RowNumber, q.Field, q.Value, format.Truncate(q.Reason, reasonWidth), q.Record.AccountNumber, q.Record.Date)
	}
	return tb.String()
}

func renderInserts(m format.Mode, results []stats.InsertResult) string {
	tb := format.NewTable(m)
	tb.Header("Artifact", "Name", "Cadence", "Month", "Placements", "Warnings", "Error")
	tb.Columns(format.ColumnConfig{Number: 5, Align: format.AlignRight})
	for _, r := range results {
		tb.Row(r.ArtifactID, format.Truncate(r.Name, nameWidth), r.Cadence, r.Month,
			r.Placements, len(r.Warnings), format.Truncate(r.Error, reasonWidth))
	}
	return tb.String()
}
