package core

import (
	"fmt"
	"strconv"
)

// UsageCode distinguishes training sessions from regular instrument usage.
type UsageCode string

const (
	UsageStandard UsageCode = "1"
	UsageTraining UsageCode = "2"
)

const (
	// EIDPlaceholder marks an EID that has not been enriched yet.
	EIDPlaceholder = "na"

	// DefaultClockTime is used when the access description carries no time.
	DefaultClockTime = "12:00 PM"
)

// DigestHeaders is the header row of a digest artifact, in field order.
var DigestHeaders = []string{
	"Date",
	"User's full name (Last First)",
	"User's EID",
	"Email address",
	"Advisor (last, first) or Company",
	"Department",
	"Account Number",
	"TIME IN",
	"TIME OUT",
	"Total Time (hrs.)",
	"Charge ($)",
	"System",
	"Code ( 2= training, 1= usage)",
}

// QuarantineHeaders is the header row of the quarantine sheet.
var QuarantineHeaders = append([]string{"Fix", "Row Number"}, DigestHeaders...)

// CanonicalRecord is one normalized billing row.
type CanonicalRecord struct {
	Date          string    `json:"date"`
	FullName      string    `json:"full_name"`
	EID           string    `json:"eid"`
	Email         string    `json:"email"`
	Advisor       string    `json:"advisor"`
	Department    string    `json:"department"`
	AccountNumber string    `json:"account_number"`
	TimeIn        string    `json:"time_in"`
	TimeOut       string    `json:"time_out"`
	TotalHours    string    `json:"total_hours"`
	Charge        string    `json:"charge"`
	System        string    `json:"system"`
	UsageCode     UsageCode `json:"usage_code"`
}

// Row serializes the record in DigestHeaders order.
func (r CanonicalRecord) Row() []string {
	return []string{
		r.Date,
		r.FullName,
		r.EID,
		r.Email,
		r.Advisor,
		r.Department,
		r.AccountNumber,
		r.TimeIn,
		r.TimeOut,
		r.TotalHours,
		r.Charge,
		r.System,
		string(r.UsageCode),
	}
}

// RecordFromRow parses a digest data row back into a record.
func RecordFromRow(row []string) (CanonicalRecord, error) {
	if len(row) != len(DigestHeaders) {
		return CanonicalRecord{}, fmt.Errorf("digest row has %d cells, want %d", len(row), len(DigestHeaders))
	}
	return CanonicalRecord{
		Date:          row[0],
		FullName:      row[1],
		EID:           row[2],
		Email:         row[3],
		Advisor:       row[4],
		Department:    row[5],
		AccountNumber: row[6],
		TimeIn:        row[7],
		TimeOut:       row[8],
		TotalHours:    row[9],
		Charge:        row[10],
		System:        row[11],
		UsageCode:     UsageCode(row[12]),
	}, nil
}

// NameField identifies which name-bearing field a quarantine entry refers to.
type NameField string

const (
	FieldFullName NameField = "full_name"
	FieldAdvisor  NameField = "advisor"
)

// QuarantineRecord is a row held back from the digest for manual correction.
type QuarantineRecord struct {
	Field     NameField       `json:"field"`
	Value     string          `json:"value"`      // Offending field value as it appeared in the sanitized data
	RowNumber int             `json:"row_number"` // Display row in the sanitized snapshot
	Reason    string          `json:"reason"`
	Record    CanonicalRecord `json:"record"` // Snapshot, possibly partially normalized
}

// Row serializes the entry in QuarantineHeaders order.
func (q QuarantineRecord) Row() []string {
	return append([]string{q.Value, strconv.Itoa(q.RowNumber)}, q.Record.Row()...)
}

// DisplayRowOffset converts a 0-based record index into the row number shown
// to operators: two stripped header rows plus one for 1-based display.
const DisplayRowOffset = 3

// DisplayRow returns the operator-facing row number for a record index.
func DisplayRow(index int) int {
	return index + DisplayRowOffset
}

// ParseQuarantineRow reads a stored quarantine sheet row. The field is
// inferred from which name the offending value matches.
func ParseQuarantineRow(row []string) (QuarantineRecord, error) {
	if len(row) != len(QuarantineHeaders) {
		return QuarantineRecord{}, fmt.Errorf("quarantine row has %d cells, want %d", len(row), len(QuarantineHeaders))
	}
	rowNumber, err := strconv.Atoi(row[1])
	if err != nil {
		return QuarantineRecord{}, fmt.Errorf("quarantine row number %q: %w", row[1], err)
	}
	rec, err := RecordFromRow(row[2:])
	if err != nil {
		return QuarantineRecord{}, err
	}

	field := FieldAdvisor
	if row[0] == rec.FullName {
		field = FieldFullName
	}
	return QuarantineRecord{Field: field, Value: row[0], RowNumber: rowNumber, Record: rec}, nil
}
