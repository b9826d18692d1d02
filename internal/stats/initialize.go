package stats

import (
	"context"
	"fmt"
)

// MonthLabels returns the month header labels of the reporting year that
// starts in October of startYear, e.g. "Oct-24" through "Sep-25".
func MonthLabels(startYear int) []string {
	labels := make([]string, len(FiscalMonths))
	for i, m := range FiscalMonths {
		year := startYear
		if i > 2 {
			year++
		}
		labels[i] = fmt.Sprintf("%s-%02d", m, year%100)
	}
	return labels
}

// InitializeYear writes the reporting period title and the month header row
// of every section of a new report.
func InitializeYear(ctx context.Context, sink SheetSink, layout ReportLayout, reportID string, startYear int) error {
	if startYear < 1000 || startYear > 9998 {
		return fmt.Errorf("start year %d is not a four digit year", startYear)
	}
	first, ok := layout.MonthColumns[FiscalMonths[0]]
	if !ok {
		return fmt.Errorf("report layout has no %s column", FiscalMonths[0])
	}

	title := fmt.Sprintf("%s 10/1/%d - 09/30/%d", layout.Title, startYear, startYear+1)
	if err := sink.WriteBlock(ctx, reportID, layout.Sheet, 1, 1, [][]string{{title}}); err != nil {
		return fmt.Errorf("write report title: %w", err)
	}

	labels := [][]string{MonthLabels(startYear)}
	for _, row := range layout.MonthHeaderRows {
		if err := sink.WriteBlock(ctx, reportID, layout.Sheet, row, first, labels); err != nil {
			return fmt.Errorf("write month headers at row %d: %w", row, err)
		}
	}
	return nil
}
