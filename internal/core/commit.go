package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/labdigest/internal/logging"
	"github.com/google/uuid"
)

// CommitResult describes what the committer did with one batch.
type CommitResult struct {
	Committed   bool
	DigestID    string
	DigestName  string
	Quarantined int
}

// DigestCommitter persists a batch as a digest artifact, or holds it back
// when any of its rows are quarantined.
type DigestCommitter struct {
	store ArtifactStore
	flags *FlagStore
	newID func() string
}

// NewDigestCommitter creates a committer writing to store.
func NewDigestCommitter(store ArtifactStore, flags *FlagStore) *DigestCommitter {
	return &DigestCommitter{store: store, flags: flags, newID: uuid.NewString}
}

// Commit writes the quarantine sheet and flags the source has_errors when
// quarantine is non-empty. Otherwise it clears any stale quarantine,
// persists the digest and flags the source digested. The digested flag is
// set only after the digest is fully written. A digest whose rows or flag
// could not be written is removed again, so a retry starts clean.
func (c *DigestCommitter) Commit(ctx context.Context, src Artifact, records []CanonicalRecord, quarantine []QuarantineRecord) (_ CommitResult, err error) {
	flags, err := c.flags.Flags(ctx, src.ID)
	if err != nil {
		return CommitResult{}, err
	}
	if flags.Has(FlagDigested) {
		return CommitResult{}, fmt.Errorf("artifact %s: %w: %s", src.ID, ErrDuplicateProcessing, FlagDigested)
	}

	if len(quarantine) > 0 {
		return c.hold(ctx, src, flags, quarantine)
	}

	if err := c.clearQuarantine(ctx, src.ID, flags); err != nil {
		return CommitResult{}, err
	}

	digest, err := c.store.CreateArtifact(ctx, Artifact{
		ID:       c.newID(),
		Name:     DigestName(src.Name),
		Kind:     KindDigest,
		SourceID: src.ID,
	}, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("create digest for %s: %w", src.ID, err)
	}
	defer func() {
		if err != nil {
			c.discard(ctx, digest.ID)
		}
	}()

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, DigestHeaders)
	for _, r := range records {
		rows = append(rows, r.Row())
	}
	if err := c.store.WriteSheet(ctx, digest.ID, SheetDigest, rows); err != nil {
		return CommitResult{}, fmt.Errorf("write digest %s: %w", digest.ID, err)
	}

	if sink, ok := c.store.(RecordSink); ok {
		if err := sink.SaveRecords(ctx, digest.ID, records); err != nil {
			return CommitResult{}, fmt.Errorf("save digest records %s: %w", digest.ID, err)
		}
	}

	if err := c.flags.Set(ctx, src.ID, FlagDigested); err != nil {
		return CommitResult{}, err
	}

	return CommitResult{Committed: true, DigestID: digest.ID, DigestName: digest.Name}, nil
}

func (c *DigestCommitter) hold(ctx context.Context, src Artifact, flags FlagSet, quarantine []QuarantineRecord) (CommitResult, error) {
	rows := make([][]string, 0, len(quarantine)+1)
	rows = append(rows, QuarantineHeaders)
	for _, q := range quarantine {
		rows = append(rows, q.Row())
	}
	if err := c.store.WriteSheet(ctx, src.ID, SheetQuarantine, rows); err != nil {
		return CommitResult{}, fmt.Errorf("write quarantine for %s: %w", src.ID, err)
	}

	if !flags.Has(FlagHasErrors) {
		if err := c.flags.Set(ctx, src.ID, FlagHasErrors); err != nil {
			return CommitResult{}, err
		}
	}
	return CommitResult{Quarantined: len(quarantine)}, nil
}

// discard deletes a half-written digest. It runs on a failure path, so the
// caller's context may already be cancelled.
func (c *DigestCommitter) discard(ctx context.Context, digestID string) {
	if err := c.store.DeleteArtifact(context.WithoutCancel(ctx), digestID); err != nil {
		logging.FromContext(ctx).Error("discard partial digest", "digest_id", digestID, "error", err)
	}
}

// clearQuarantine removes a quarantine left by an earlier run.
func (c *DigestCommitter) clearQuarantine(ctx context.Context, id string, flags FlagSet) error {
	if err := c.store.DeleteSheet(ctx, id, SheetQuarantine); err != nil && !errors.Is(err, ErrSheetNotFound) {
		return fmt.Errorf("delete stale quarantine for %s: %w", id, err)
	}
	if flags.Has(FlagHasErrors) {
		return c.flags.Unset(ctx, id, FlagHasErrors)
	}
	return nil
}
