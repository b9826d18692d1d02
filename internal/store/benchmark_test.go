package store

import (
	"testing"

	"github.com/JonMunkholm/labdigest/internal/core"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkToPgNumeric benchmarks hours and charge conversion.
// Every digest record converts two numeric cells before CopyFrom.
func BenchmarkToPgNumeric(b *testing.B) {
	testCases := []string{
		"1.5",
		"$1,234.56",
		"(123.45)", // Accounting negative
		"  45.00  ",
		"",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgNumeric(tc)
		}
	}
}

// BenchmarkToPgDate benchmarks session date parsing.
func BenchmarkToPgDate(b *testing.B) {
	testCases := []string{
		"03/04/2024", // Export format
		"2024-03-04",
		"3/4/24", // 2-digit year
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgDate(tc)
		}
	}
}

func BenchmarkToPgTime(b *testing.B) {
	testCases := []string{"09:15", "01:00 PM", "1:00pm", ""}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ToPgTime(tc)
		}
	}
}

// BenchmarkRecordValues benchmarks building one CopyFrom row.
func BenchmarkRecordValues(b *testing.B) {
	rec := core.CanonicalRecord{
		Date:          "03/04/2024",
		FullName:      "Smith, John",
		EID:           "js001",
		Advisor:       "Doe, Jane",
		Department:    "Chemistry",
		AccountNumber: "A-1",
		TimeIn:        "01:00 PM",
		TimeOut:       "02:00 PM",
		TotalHours:    "1.5",
		Charge:        "45.00",
		System:        "Confocal",
		UsageCode:     core.UsageTraining,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ToPgDate(rec.Date)
		ToPgText(rec.FullName)
		ToPgTime(rec.TimeIn)
		ToPgTime(rec.TimeOut)
		ToPgNumeric(rec.TotalHours)
		ToPgNumeric(rec.Charge)
		ToPgInt2(string(rec.UsageCode))
	}
}

// ============================================================================
// Store Benchmarks
// ============================================================================

func BenchmarkMemStore_WriteBlock(b *testing.B) {
	ctx := b.Context()
	s := NewMemStore()
	if _, err := s.CreateArtifact(ctx, core.Artifact{ID: "rep", Name: "report", Kind: core.KindReport}, nil); err != nil {
		b.Fatal(err)
	}
	block := [][]string{{"10.5"}, {"2"}, {"1.5"}, {""}, {"7"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.WriteBlock(ctx, "rep", "Report", 8+i%100, 7, block); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkToPgNumericParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ToPgNumeric("$1,234.56")
		}
	})
}
