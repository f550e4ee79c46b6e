package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteRepository is a file-backed request log for single-node deployments.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := MigrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) RecordRequest(ctx context.Context, record RequestRecord) error {
	const q = `
INSERT INTO request_log (
  id, operation, input, code, http_status, duration_us, received_at
) VALUES (?,?,?,?,?,?,?)
`
	_, err := r.db.ExecContext(ctx, q,
		record.ID,
		string(record.Operation),
		jsonText(record.Input),
		record.Code,
		record.HTTPStatus,
		record.Duration.Microseconds(),
		record.ReceivedAt.UTC().UnixMicro(),
	)
	if isSQLiteUniqueViolation(err) {
		return ErrRequestAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert request record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRequest(ctx context.Context, id string) (RequestRecord, bool, error) {
	const q = `
SELECT id, operation, input, code, http_status, duration_us, received_at
FROM request_log
WHERE id = ?
`
	rec, err := scanSQLiteRequest(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RequestRecord{}, false, nil
	}
	if err != nil {
		return RequestRecord{}, false, err
	}
	return rec, true, nil
}

func (r *SQLiteRepository) ListRequests(ctx context.Context, filter ListFilter) ([]RequestRecord, error) {
	const q = `
SELECT id, operation, input, code, http_status, duration_us, received_at
FROM request_log
WHERE (? = '' OR operation = ?)
ORDER BY received_at DESC, id DESC
LIMIT ?
`
	op := string(filter.Operation)
	rows, err := r.db.QueryContext(ctx, q, op, op, filter.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RequestRecord, 0)
	for rows.Next() {
		rec, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSQLiteRequest(row rowScanner) (RequestRecord, error) {
	var (
		rec        RequestRecord
		operation  string
		input      string
		durationUS int64
		receivedUS int64
	)
	if err := row.Scan(
		&rec.ID,
		&operation,
		&input,
		&rec.Code,
		&rec.HTTPStatus,
		&durationUS,
		&receivedUS,
	); err != nil {
		return RequestRecord{}, err
	}
	rec.Operation = Operation(operation)
	rec.Input = []byte(input)
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	rec.ReceivedAt = time.UnixMicro(receivedUS).UTC()
	return rec, nil
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Repository = (*SQLiteRepository)(nil)
