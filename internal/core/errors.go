package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these.
var (
	ErrFormat              = errors.New("row shorter than source layout")
	ErrNameParse           = errors.New("name parse error")
	ErrDuplicateProcessing = errors.New("flag already set")
	ErrLayoutGap           = errors.New("report category absent")
	ErrIllegalTransition   = errors.New("illegal flag transition")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrSheetNotFound       = errors.New("sheet not found")
	ErrDictionary          = errors.New("dictionary load failed")
	ErrEmptyFile           = errors.New("empty file")
	ErrInvalidFix          = errors.New("invalid fix")
)

// FormatError reports a row with fewer cells than the source layout expects.
type FormatError struct {
	Row     int // Display row number
	Columns int
	Want    int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("row %d: %d columns, want at least %d", e.Row, e.Columns, e.Want)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// NameParseError reports a name field that could not be normalized.
type NameParseError struct {
	Value  string
	Reason string
}

func (e *NameParseError) Error() string {
	return fmt.Sprintf("cannot normalize name %q: %s", e.Value, e.Reason)
}

func (e *NameParseError) Unwrap() error { return ErrNameParse }

// TransitionError reports a flag that is not legal in the artifact's current state.
type TransitionError struct {
	ArtifactID string
	From       State
	Flag       Flag
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("artifact %s: cannot set %s from state %s", e.ArtifactID, e.Flag, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }
