package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference. When operators quote a code, support can
// look it up here.
//
// # Row Errors (ROW001-ROW003)
//
//	ROW001 - Short row: a row has fewer columns than the export format
//	ROW002 - Name parse: a name could not be split into last and first name
//	ROW003 - Invalid fix: a correction does not point at a quarantined row
//
// # Flag Errors (FLG001-FLG003)
//
//	FLG001 - Already processed: the step already ran for this file
//	FLG002 - Out of order: an earlier step has not run yet
//	FLG003 - Busy: another pipeline run is in progress
//
// # Storage Errors (STO001-STO004)
//
//	STO001 - Artifact not found
//	STO002 - Sheet not found (the step that writes it has not run)
//	STO003 - Connection refused
//	STO004 - Timeout
//
// # Dictionary Errors (DICT001)
//
//	DICT001 - A lookup dictionary could not be read
//
// # File Errors (FILE001-FILE004)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Encoding error
//	FILE004 - Empty file or no file
//
// # Report Errors (RPT001-RPT003)
//
//	RPT001 - Category absent from a stats report
//	RPT002 - Report month could not be read from the file name
//	RPT003 - Unknown report cadence
//
// # Request Errors (REQ001)
//
//	REQ001 - Malformed API request; the message says what was wrong.
//	         Raised by the web layer, not mapped here.
//
// # Default Error (ERR000)
//
// Sentinel errors are matched with errors.Is first. Remaining entries are
// matched case-insensitively against the error text; the first match wins,
// so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorMatch pairs a sentinel or a text pattern with its user message.
type errorMatch struct {
	target  error
	pattern string
	msg     UserMessage
}

var errorMatches = []errorMatch{
	// Row errors
	{target: ErrFormat, msg: UserMessage{
		Message: "A row has fewer columns than the export format",
		Action:  "Check that the export was not truncated",
		Code:    "ROW001",
	}},
	{target: ErrNameParse, msg: UserMessage{
		Message: "A name could not be split into last and first name",
		Action:  "Correct the row listed in Fix These Rows and digest again",
		Code:    "ROW002",
	}},
	{target: ErrInvalidFix, msg: UserMessage{
		Message: "The correction does not match a row in the sanitized data",
		Action:  "Use the row number shown in Fix These Rows",
		Code:    "ROW003",
	}},

	// Flag errors
	{target: ErrDuplicateProcessing, msg: UserMessage{
		Message: "This step has already been applied to the file",
		Action:  "No action needed",
		Code:    "FLG001",
	}},
	{target: ErrIllegalTransition, msg: UserMessage{
		Message: "This step cannot run in the file's current state",
		Action:  "Run the earlier pipeline steps first",
		Code:    "FLG002",
	}},
	{target: ErrRunInProgress, msg: UserMessage{
		Message: "Another pipeline run is in progress",
		Action:  "Wait for it to finish and try again",
		Code:    "FLG003",
	}},

	// Storage errors
	{target: ErrArtifactNotFound, msg: UserMessage{
		Message: "File not found",
		Action:  "Verify the file id is correct",
		Code:    "STO001",
	}},
	{target: ErrSheetNotFound, msg: UserMessage{
		Message: "The requested sheet does not exist yet",
		Action:  "Run the step that produces it first",
		Code:    "STO002",
	}},
	{pattern: "connection refused", msg: UserMessage{
		Message: "Unable to connect to storage",
		Action:  "Please try again in a few moments",
		Code:    "STO003",
	}},
	{pattern: "context deadline exceeded", msg: UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "STO004",
	}},
	{pattern: "timeout", msg: UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "STO004",
	}},

	// Dictionary errors
	{target: ErrDictionary, msg: UserMessage{
		Message: "A lookup dictionary could not be read",
		Action:  "Check the dictionary paths and that each file is a JSON object",
		Code:    "DICT001",
	}},

	// File errors
	{pattern: "file too large", msg: UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the export into smaller files",
		Code:    "FILE001",
	}},
	{pattern: "invalid csv", msg: UserMessage{
		Message: "File is not a valid CSV or TSV export",
		Action:  "Re-export the file from the access system",
		Code:    "FILE002",
	}},
	{pattern: "encoding error", msg: UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8",
		Code:    "FILE003",
	}},
	{target: ErrEmptyFile, msg: UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload an export with data rows",
		Code:    "FILE004",
	}},
	{pattern: "no file provided", msg: UserMessage{
		Message: "No file was selected",
		Action:  "Select a file to upload",
		Code:    "FILE004",
	}},

	// Report errors
	{target: ErrLayoutGap, msg: UserMessage{
		Message: "A category is missing from the stats report",
		Action:  "Check that the report covers every category",
		Code:    "RPT001",
	}},
	{pattern: "unknown report month", msg: UserMessage{
		Message: "The report month could not be read from the file name",
		Action:  "Name stats reports YYYY-MM followed by any text",
		Code:    "RPT002",
	}},
	{pattern: "unknown cadence", msg: UserMessage{
		Message: "The report is neither monthly nor cumulative",
		Action:  "Upload the report as stats-monthly or stats-cumulative",
		Code:    "RPT003",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMatches {
		if m.target != nil && errors.Is(err, m.target) {
			return m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, m := range errorMatches {
		if m.pattern != "" && strings.Contains(errStr, m.pattern) {
			return m.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
