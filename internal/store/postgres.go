package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResetTimeout bounds a full reset of the Postgres tables.
const ResetTimeout = 30 * time.Second

const pgSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	source_id  TEXT,
	flags      JSONB NOT NULL DEFAULT '[]',
	content    BYTEA,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind);

CREATE TABLE IF NOT EXISTS artifact_sheets (
	artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	rows        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (artifact_id, name)
);

CREATE TABLE IF NOT EXISTS digest_records (
	digest_id      TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	session_date   DATE,
	full_name      TEXT,
	eid            TEXT,
	email          TEXT,
	advisor        TEXT,
	department     TEXT,
	account_number TEXT,
	time_in        TIME,
	time_out       TIME,
	total_hours    NUMERIC,
	charge         NUMERIC,
	system         TEXT,
	usage_code     SMALLINT,
	record         JSONB NOT NULL,
	PRIMARY KEY (digest_id, position)
);

CREATE TABLE IF NOT EXISTS report_cells (
	report_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	sheet     TEXT NOT NULL,
	row_num   INTEGER NOT NULL,
	col_num   INTEGER NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (report_id, sheet, row_num, col_num)
);
`

var digestRecordColumns = []string{
	"digest_id", "position", "session_date", "full_name", "eid", "email",
	"advisor", "department", "account_number", "time_in", "time_out",
	"total_hours", "charge", "system", "usage_code", "record",
}

// PGStore implements Store on a shared Postgres database.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// NewPGStore wraps an open pool and creates any missing tables.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) CreateArtifact(ctx context.Context, a core.Artifact, content []byte) (core.Artifact, error) {
	if a.Flags == nil {
		a.Flags = core.FlagSet{}
	}
	flags, err := encodeFlags(a.Flags)
	if err != nil {
		return core.Artifact{}, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO artifacts(id, name, kind, source_id, flags, content)
		 VALUES($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		a.ID, a.Name, string(a.Kind), ToPgText(a.SourceID), flags, content,
	).Scan(&a.CreatedAt)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("insert artifact %s: %w", a.ID, err)
	}
	return a, nil
}

const pgArtifactColumns = "id, name, kind, coalesce(source_id, ''), flags, created_at"

func scanPGArtifact(row pgx.Row) (core.Artifact, error) {
	var (
		a     core.Artifact
		kind  string
		flags []byte
	)
	if err := row.Scan(&a.ID, &a.Name, &kind, &a.SourceID, &flags, &a.CreatedAt); err != nil {
		return core.Artifact{}, err
	}
	fs, err := core.DecodeFlags(flags)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("artifact %s: %w", a.ID, err)
	}
	a.Kind = core.ArtifactKind(kind)
	a.Flags = fs
	return a, nil
}

func (s *PGStore) GetArtifact(ctx context.Context, id string) (core.Artifact, error) {
	a, err := scanPGArtifact(s.pool.QueryRow(ctx,
		"SELECT "+pgArtifactColumns+" FROM artifacts WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Artifact{}, notFound(id)
	}
	if err != nil {
		return core.Artifact{}, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return a, nil
}

func (s *PGStore) ListArtifacts(ctx context.Context, kind core.ArtifactKind) ([]core.Artifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgArtifactColumns+` FROM artifacts
		 WHERE $1 = '' OR kind = $1
		 ORDER BY created_at, id`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []core.Artifact{}
	for rows.Next() {
		a, err := scanPGArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) ReadContent(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	err := s.pool.QueryRow(ctx, "SELECT content FROM artifacts WHERE id = $1", id).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", id, err)
	}
	return content, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PGStore) exists(ctx context.Context, q pgQuerier, id string) error {
	var found bool
	if err := q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM artifacts WHERE id = $1)", id).Scan(&found); err != nil {
		return fmt.Errorf("check artifact %s: %w", id, err)
	}
	if !found {
		return notFound(id)
	}
	return nil
}

func (s *PGStore) DeleteArtifact(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM artifacts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PGStore) ReadSheet(ctx context.Context, id, sheet string) ([][]string, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		"SELECT rows FROM artifact_sheets WHERE artifact_id = $1 AND name = $2", id, sheet,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.exists(ctx, s.pool, id); err != nil {
			return nil, err
		}
		return nil, sheetNotFound(id, sheet)
	}
	if err != nil {
		return nil, fmt.Errorf("read sheet %s/%s: %w", id, sheet, err)
	}
	return decodeRows(data)
}

func (s *PGStore) WriteSheet(ctx context.Context, id, sheet string, rows [][]string) error {
	data, err := encodeRows(rows)
	if err != nil {
		return err
	}
	if err := s.exists(ctx, s.pool, id); err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO artifact_sheets(artifact_id, name, rows) VALUES($1, $2, $3)
		 ON CONFLICT (artifact_id, name) DO UPDATE SET rows = EXCLUDED.rows, updated_at = now()`,
		id, sheet, data)
	if err != nil {
		return fmt.Errorf("write sheet %s/%s: %w", id, sheet, err)
	}
	return nil
}

func (s *PGStore) DeleteSheet(ctx context.Context, id, sheet string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM artifact_sheets WHERE artifact_id = $1 AND name = $2", id, sheet)
	if err != nil {
		return fmt.Errorf("delete sheet %s/%s: %w", id, sheet, err)
	}
	if tag.RowsAffected() == 0 {
		if err := s.exists(ctx, s.pool, id); err != nil {
			return err
		}
		return sheetNotFound(id, sheet)
	}
	return nil
}

func (s *PGStore) LoadFlags(ctx context.Context, id string) (core.FlagSet, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "SELECT flags FROM artifacts WHERE id = $1", id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load flags %s: %w", id, err)
	}
	return core.DecodeFlags(data)
}

func (s *PGStore) SaveFlags(ctx context.Context, id string, flags core.FlagSet) error {
	data, err := encodeFlags(flags)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, "UPDATE artifacts SET flags = $1 WHERE id = $2", data, id)
	if err != nil {
		return fmt.Errorf("save flags %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// SaveRecords replaces the typed records of a digest in one transaction,
// loading them with COPY.
func (s *PGStore) SaveRecords(ctx context.Context, digestID string, records []core.CanonicalRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin records tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.exists(ctx, tx, digestID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM digest_records WHERE digest_id = $1", digestID); err != nil {
		return fmt.Errorf("clear records %s: %w", digestID, err)
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		rows[i] = []any{
			digestID,
			int32(i),
			ToPgDate(r.Date),
			ToPgText(r.FullName),
			ToPgText(r.EID),
			ToPgText(r.Email),
			ToPgText(r.Advisor),
			ToPgText(r.Department),
			ToPgText(r.AccountNumber),
			ToPgTime(r.TimeIn),
			ToPgTime(r.TimeOut),
			ToPgNumeric(r.TotalHours),
			ToPgNumeric(r.Charge),
			ToPgText(r.System),
			ToPgInt2(string(r.UsageCode)),
			data,
		}
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"digest_records"}, digestRecordColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy records %s: %w", digestID, err)
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Records(ctx context.Context, digestID string) ([]core.CanonicalRecord, error) {
	if err := s.exists(ctx, s.pool, digestID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		"SELECT record FROM digest_records WHERE digest_id = $1 ORDER BY position", digestID)
	if err != nil {
		return nil, fmt.Errorf("list records %s: %w", digestID, err)
	}
	defer rows.Close()

	out := []core.CanonicalRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r core.CanonicalRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) WriteBlock(ctx context.Context, reportID, sheet string, row, col int, values [][]string) error {
	if err := validBlock(row, col); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin block tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.exists(ctx, tx, reportID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, r := range values {
		for j, v := range r {
			batch.Queue(
				`INSERT INTO report_cells(report_id, sheet, row_num, col_num, value) VALUES($1, $2, $3, $4, $5)
				 ON CONFLICT (report_id, sheet, row_num, col_num) DO UPDATE SET value = EXCLUDED.value`,
				reportID, sheet, row+i, col+j, v)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write block at (%d, %d): %w", row, col, err)
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ReadCells(ctx context.Context, reportID, sheet string) ([]Cell, error) {
	if err := s.exists(ctx, s.pool, reportID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT row_num, col_num, value FROM report_cells
		 WHERE report_id = $1 AND sheet = $2 ORDER BY row_num, col_num`, reportID, sheet)
	if err != nil {
		return nil, fmt.Errorf("read cells %s/%s: %w", reportID, sheet, err)
	}
	defer rows.Close()

	out := []Cell{}
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.Row, &c.Column, &c.Value); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type pgResetFn func(ctx context.Context, tx pgx.Tx) error

func truncate(table string) pgResetFn {
	return func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "TRUNCATE "+pgx.Identifier{table}.Sanitize()+" CASCADE"); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
		return nil
	}
}

// Reset truncates every table. This is destructive.
func (s *PGStore) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := runResets(ctx, tx, []pgResetFn{
		truncate("report_cells"),
		truncate("digest_records"),
		truncate("artifact_sheets"),
		truncate("artifacts"),
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func runResets(ctx context.Context, tx pgx.Tx, resets []pgResetFn) error {
	for _, reset := range resets {
		if err := reset(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
