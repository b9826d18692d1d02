package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "first last", input: "john smith", want: "Smith, John"},
		{name: "mixed case", input: "JOHN SMITH", want: "Smith, John"},
		{name: "middle initial", input: "john q. smith", want: "Smith, John Q"},
		{name: "hyphenated given name", input: "mary-jane watson", want: "Watson, Mary-Jane"},
		{name: "hyphenated with initial", input: "mary-jane o. watson", want: "Watson, Mary-Jane O"},
		{name: "hyphenated surname", input: "anna jones-smith", want: "Jones-Smith, Anna"},
		{name: "already normalized", input: "Smith, John", want: "Smith, John"},
		{name: "normalized with initial", input: "Smith, John Q", want: "Smith, John Q"},
		{name: "comma form with trailing initial", input: "smith, john q ", want: "Smith, John Q"},
		{name: "bare initial mid-name dropped", input: "smith, john q paul", want: "Smith, John Paul"},
		{name: "comma form with hyphen", input: "jones-smith, anna", want: "Jones-Smith, Anna"},
		{name: "extra whitespace", input: "  john   smith ", want: "Smith, John"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "single component", input: "madonna", wantErr: true},
		{name: "dangling hyphen", input: "john -", wantErr: true},
		{name: "no usable components", input: "a b", wantErr: true},
		{name: "comma with nothing after", input: "smith,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeName(%q) = %q, want error", tt.input, got)
				}
				if !errors.Is(err, ErrNameParse) {
					t.Errorf("error %v does not unwrap to ErrNameParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeName(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{"john smith", "mary-jane watson", "anna jones-smith", "JOHN SMITH"}
	for _, in := range inputs {
		once, err := NormalizeName(in)
		if err != nil {
			t.Fatalf("NormalizeName(%q) error: %v", in, err)
		}
		twice, err := NormalizeName(once)
		if err != nil {
			t.Fatalf("NormalizeName(%q) error: %v", once, err)
		}
		if once != twice {
			t.Errorf("NormalizeName not stable: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeNames_QuarantineIsolation(t *testing.T) {
	records := []CanonicalRecord{
		{FullName: "john smith", Advisor: "jane doe"},
		{FullName: "madonna", Advisor: "jane doe"},
		{FullName: "ann lee", Advisor: "x"},
		{FullName: "bob ray", Advisor: "jane doe"},
	}

	kept, quarantined := NormalizeNames(records)

	wantKept := []string{"Smith, John", "Ray, Bob"}
	gotKept := make([]string, len(kept))
	for i, r := range kept {
		gotKept[i] = r.FullName
		if r.Advisor != "Doe, Jane" {
			t.Errorf("kept[%d].Advisor = %q, want %q", i, r.Advisor, "Doe, Jane")
		}
	}
	if diff := cmp.Diff(wantKept, gotKept); diff != "" {
		t.Errorf("kept names mismatch (-want +got):\n%s", diff)
	}

	if len(quarantined) != 2 {
		t.Fatalf("quarantined %d records, want 2", len(quarantined))
	}

	first := quarantined[0]
	if first.Field != FieldFullName || first.Value != "madonna" || first.RowNumber != 4 {
		t.Errorf("quarantined[0] = %+v, want full_name %q at row 4", first, "madonna")
	}

	second := quarantined[1]
	if second.Field != FieldAdvisor || second.Value != "x" || second.RowNumber != 5 {
		t.Errorf("quarantined[1] = %+v, want advisor %q at row 5", second, "x")
	}
	if second.Record.FullName != "Lee, Ann" {
		t.Errorf("quarantined[1].Record.FullName = %q, want partially normalized %q", second.Record.FullName, "Lee, Ann")
	}
}

func TestQuarantineRecord_RowRoundTrip(t *testing.T) {
	q := QuarantineRecord{
		Field:     FieldAdvisor,
		Value:     "x",
		RowNumber: 7,
		Record:    CanonicalRecord{FullName: "Lee, Ann", Advisor: "x", EID: EIDPlaceholder, UsageCode: UsageStandard},
	}

	got, err := ParseQuarantineRow(q.Row())
	if err != nil {
		t.Fatalf("ParseQuarantineRow error: %v", err)
	}
	if diff := cmp.Diff(q, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
