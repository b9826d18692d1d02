package core

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Flag is a persisted marker recording that a processing stage ran.
type Flag string

const (
	FlagConverted Flag = "converted"
	FlagSanitized Flag = "sanitized"
	FlagHasErrors Flag = "has_errors"
	FlagDigested  Flag = "digested"
	FlagInserted  Flag = "inserted" // Stats report copied into the financial report
)

// flagDescriptions are the human-readable strings older tooling stored in
// file descriptions. They are accepted when reading flags.
var flagDescriptions = map[Flag]string{
	FlagConverted: "A copy of this file has already been saved as a Google Sheet.",
	FlagSanitized: "This Google Sheet contains a sheet with sanitized raw data.",
	FlagHasErrors: "Errors in the sanitized data need to be corrected before data can be digested",
	FlagDigested:  "A copy of the digested sanitized data has already been saved as a Google Sheet.",
	FlagInserted:  "Added To Report",
}

// Description returns the human-readable form of the flag.
func (f Flag) Description() string {
	return flagDescriptions[f]
}

// ParseFlag accepts either a flag key or its legacy description.
func ParseFlag(s string) (Flag, error) {
	s = strings.TrimSpace(s)
	for f, desc := range flagDescriptions {
		if s == string(f) || s == desc {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown processing flag %q", s)
}

// State is the lifecycle position of a raw artifact.
type State string

const (
	StateNew         State = "new"
	StateConverted   State = "converted"
	StateSanitized   State = "sanitized"
	StateQuarantined State = "quarantined"
	StateDigested    State = "digested"
)

// FlagSet is the ordered set of flags on one artifact.
type FlagSet []Flag

// Has reports whether f is present.
func (s FlagSet) Has(f Flag) bool {
	return slices.Contains(s, f)
}

// State derives the lifecycle state from the flags present.
func (s FlagSet) State() State {
	switch {
	case s.Has(FlagDigested):
		return StateDigested
	case s.Has(FlagHasErrors):
		return StateQuarantined
	case s.Has(FlagSanitized):
		return StateSanitized
	case s.Has(FlagConverted):
		return StateConverted
	default:
		return StateNew
	}
}

// MarshalJSON always writes a list, never null.
func (s FlagSet) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = string(f)
	}
	return json.Marshal(keys)
}

// UnmarshalJSON reads a list of flag keys or legacy descriptions.
func (s *FlagSet) UnmarshalJSON(b []byte) error {
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode flags: %w", err)
	}
	out := make(FlagSet, 0, len(raw))
	for _, r := range raw {
		f, err := ParseFlag(r)
		if err != nil {
			return err
		}
		if !out.Has(f) {
			out = append(out, f)
		}
	}
	*s = out
	return nil
}

// DecodeFlags parses stored flag metadata. Empty input means no flags.
func DecodeFlags(data []byte) (FlagSet, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return FlagSet{}, nil
	}
	var fs FlagSet
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// isAllowedTransition reports whether f may be added to an artifact in state from.
func isAllowedTransition(from State, f Flag) bool {
	switch f {
	case FlagConverted:
		return from == StateNew
	case FlagSanitized:
		return from == StateNew || from == StateConverted
	case FlagHasErrors, FlagDigested:
		return from == StateSanitized
	case FlagInserted:
		return true
	default:
		return false
	}
}

// FlagStore records which processing stages have run on an artifact.
// Callers check Has before running a stage; Set refuses duplicates and
// transitions that skip a stage.
type FlagStore struct {
	storage FlagStorage
}

// NewFlagStore creates a FlagStore over the given storage.
func NewFlagStore(storage FlagStorage) *FlagStore {
	return &FlagStore{storage: storage}
}

// Flags returns the current flags of an artifact.
func (fs *FlagStore) Flags(ctx context.Context, id string) (FlagSet, error) {
	flags, err := fs.storage.LoadFlags(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load flags for %s: %w", id, err)
	}
	return flags, nil
}

// Has reports whether flag f is set on the artifact.
func (fs *FlagStore) Has(ctx context.Context, id string, f Flag) (bool, error) {
	flags, err := fs.Flags(ctx, id)
	if err != nil {
		return false, err
	}
	return flags.Has(f), nil
}

// Set appends flag f to the artifact's flags.
// It returns ErrDuplicateProcessing if f is already present and a
// *TransitionError if the artifact's state does not allow f.
func (fs *FlagStore) Set(ctx context.Context, id string, f Flag) error {
	flags, err := fs.Flags(ctx, id)
	if err != nil {
		return err
	}
	if flags.Has(f) {
		return fmt.Errorf("artifact %s: %w: %s", id, ErrDuplicateProcessing, f)
	}
	if from := flags.State(); !isAllowedTransition(from, f) {
		return &TransitionError{ArtifactID: id, From: from, Flag: f}
	}

	next := append(slices.Clone(flags), f)
	if err := fs.storage.SaveFlags(ctx, id, next); err != nil {
		return fmt.Errorf("save flags for %s: %w", id, err)
	}
	return nil
}

// Unset clears a flag that is no longer true. Only has_errors can be
// cleared, when a quarantine has been resolved.
func (fs *FlagStore) Unset(ctx context.Context, id string, f Flag) error {
	if f != FlagHasErrors {
		return fmt.Errorf("artifact %s: %w: %s cannot be cleared", id, ErrIllegalTransition, f)
	}
	flags, err := fs.Flags(ctx, id)
	if err != nil {
		return err
	}
	if !flags.Has(f) {
		return nil
	}

	next := slices.DeleteFunc(slices.Clone(flags), func(x Flag) bool { return x == f })
	if err := fs.storage.SaveFlags(ctx, id, next); err != nil {
		return fmt.Errorf("save flags for %s: %w", id, err)
	}
	return nil
}
