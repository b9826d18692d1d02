package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/labdigest/internal/core"

	_ "modernc.org/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE artifacts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	source_id  TEXT,
	flags      TEXT NOT NULL DEFAULT '[]',
	content    BLOB,
	created_at TEXT NOT NULL
);
CREATE INDEX idx_artifacts_kind ON artifacts(kind);

CREATE TABLE sheets (
	artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	rows        TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (artifact_id, name)
);

CREATE TABLE digest_records (
	digest_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	record    TEXT NOT NULL,
	PRIMARY KEY (digest_id, position)
);

CREATE TABLE report_cells (
	report_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	sheet     TEXT NOT NULL,
	row_num   INTEGER NOT NULL,
	col_num   INTEGER NOT NULL,
	value     TEXT NOT NULL,
	PRIMARY KEY (report_id, sheet, row_num, col_num)
);
`

// nowUTC returns the current UTC time as an RFC 3339 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// SQLiteStore implements Store with SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates a SQLite database at path and runs migrations.
// The parent directory is created if it does not exist.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps pragmas in effect and avoids SQLITE_BUSY between
	// our own goroutines.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var tableCount int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall(ctx)
	}

	var v int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("schema_version table is empty")
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch v {
	case sqliteSchemaVersion:
		return nil
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SQLiteStore) freshInstall(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteSchemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES(?)", sqliteSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) CreateArtifact(ctx context.Context, a core.Artifact, content []byte) (core.Artifact, error) {
	if a.Flags == nil {
		a.Flags = core.FlagSet{}
	}
	flags, err := encodeFlags(a.Flags)
	if err != nil {
		return core.Artifact{}, err
	}
	created := nowUTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts(id, name, kind, source_id, flags, content, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Kind), nullIfEmpty(a.SourceID), string(flags), content, created,
	)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("insert artifact %s: %w", a.ID, err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return a, nil
}

const artifactColumns = "id, name, kind, source_id, flags, created_at"

func scanArtifact(scan func(dest ...any) error) (core.Artifact, error) {
	var (
		a        core.Artifact
		kind     string
		sourceID sql.NullString
		flags    string
		created  string
	)
	if err := scan(&a.ID, &a.Name, &kind, &sourceID, &flags, &created); err != nil {
		return core.Artifact{}, err
	}
	fs, err := core.DecodeFlags([]byte(flags))
	if err != nil {
		return core.Artifact{}, fmt.Errorf("artifact %s: %w", a.ID, err)
	}
	a.Kind = core.ArtifactKind(kind)
	a.SourceID = sourceID.String
	a.Flags = fs
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return a, nil
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (core.Artifact, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+artifactColumns+" FROM artifacts WHERE id = ?", id)
	a, err := scanArtifact(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Artifact{}, notFound(id)
	}
	if err != nil {
		return core.Artifact{}, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, kind core.ArtifactKind) ([]core.Artifact, error) {
	query := "SELECT " + artifactColumns + " FROM artifacts"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []core.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReadContent(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, "SELECT content FROM artifacts WHERE id = ?", id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", id, err)
	}
	return content, nil
}

func (s *SQLiteStore) exists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id string) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifacts WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("check artifact %s: %w", id, err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) DeleteArtifact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) ReadSheet(ctx context.Context, id, sheet string) ([][]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT rows FROM sheets WHERE artifact_id = ? AND name = ?", id, sheet,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.exists(ctx, s.db, id); err != nil {
			return nil, err
		}
		return nil, sheetNotFound(id, sheet)
	}
	if err != nil {
		return nil, fmt.Errorf("read sheet %s/%s: %w", id, sheet, err)
	}
	return decodeRows([]byte(data))
}

func (s *SQLiteStore) WriteSheet(ctx context.Context, id, sheet string, rows [][]string) error {
	data, err := encodeRows(rows)
	if err != nil {
		return err
	}
	if err := s.exists(ctx, s.db, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sheets(artifact_id, name, rows, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(artifact_id, name) DO UPDATE SET rows = excluded.rows, updated_at = excluded.updated_at`,
		id, sheet, string(data), nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("write sheet %s/%s: %w", id, sheet, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSheet(ctx context.Context, id, sheet string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sheets WHERE artifact_id = ? AND name = ?", id, sheet)
	if err != nil {
		return fmt.Errorf("delete sheet %s/%s: %w", id, sheet, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := s.exists(ctx, s.db, id); err != nil {
			return err
		}
		return sheetNotFound(id, sheet)
	}
	return nil
}

func (s *SQLiteStore) LoadFlags(ctx context.Context, id string) (core.FlagSet, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT flags FROM artifacts WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load flags %s: %w", id, err)
	}
	return core.DecodeFlags([]byte(data))
}

func (s *SQLiteStore) SaveFlags(ctx context.Context, id string, flags core.FlagSet) error {
	data, err := encodeFlags(flags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE artifacts SET flags = ? WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("save flags %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, digestID string, records []core.CanonicalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin records tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.exists(ctx, tx, digestID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM digest_records WHERE digest_id = ?", digestID); err != nil {
		return fmt.Errorf("clear records %s: %w", digestID, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO digest_records(digest_id, position, record) VALUES(?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, digestID, i, string(data)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Records(ctx context.Context, digestID string) ([]core.CanonicalRecord, error) {
	if err := s.exists(ctx, s.db, digestID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT record FROM digest_records WHERE digest_id = ? ORDER BY position", digestID)
	if err != nil {
		return nil, fmt.Errorf("list records %s: %w", digestID, err)
	}
	defer rows.Close()

	out := []core.CanonicalRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r core.CanonicalRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) WriteBlock(ctx context.Context, reportID, sheet string, row, col int, values [][]string) error {
	if err := validBlock(row, col); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin block tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.exists(ctx, tx, reportID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_cells(report_id, sheet, row_num, col_num, value) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(report_id, sheet, row_num, col_num) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare cell upsert: %w", err)
	}
	defer stmt.Close()

	for i, r := range values {
		for j, v := range r {
			if _, err := stmt.ExecContext(ctx, reportID, sheet, row+i, col+j, v); err != nil {
				return fmt.Errorf("write cell (%d, %d): %w", row+i, col+j, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReadCells(ctx context.Context, reportID, sheet string) ([]Cell, error) {
	if err := s.exists(ctx, s.db, reportID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_num, col_num, value FROM report_cells
		 WHERE report_id = ? AND sheet = ? ORDER BY row_num, col_num`, reportID, sheet)
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

func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"report_cells", "digest_records", "sheets", "artifacts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullIfEmpty stores empty strings as NULL.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
