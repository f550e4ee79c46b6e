package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) RecordRequest(ctx context.Context, record RequestRecord) error {
	const q = `
INSERT INTO request_log (
  id, operation, input, code, http_status, duration_us, received_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		record.ID,
		string(record.Operation),
		jsonText(record.Input),
		record.Code,
		record.HTTPStatus,
		record.Duration.Microseconds(),
		record.ReceivedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return ErrRequestAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert request record: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetRequest(ctx context.Context, id string) (RequestRecord, bool, error) {
	const q = `
SELECT id, operation, input, code, http_status, duration_us, received_at
FROM request_log
WHERE id = $1
`
	rec, err := scanPostgresRequest(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RequestRecord{}, false, nil
	}
	if err != nil {
		return RequestRecord{}, false, err
	}
	return rec, true, nil
}

func (r *postgresRepository) ListRequests(ctx context.Context, filter ListFilter) ([]RequestRecord, error) {
	const q = `
SELECT id, operation, input, code, http_status, duration_us, received_at
FROM request_log
WHERE ($1 = '' OR operation = $1)
ORDER BY received_at DESC, id DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, string(filter.Operation), filter.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RequestRecord, 0)
	for rows.Next() {
		rec, err := scanPostgresRequest(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresRequest(row rowScanner) (RequestRecord, error) {
	var (
		rec        RequestRecord
		operation  string
		input      []byte
		durationUS int64
	)
	if err := row.Scan(
		&rec.ID,
		&operation,
		&input,
		&rec.Code,
		&rec.HTTPStatus,
		&durationUS,
		&rec.ReceivedAt,
	); err != nil {
		return RequestRecord{}, err
	}
	rec.Operation = Operation(operation)
	rec.Input = append([]byte(nil), input...)
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	rec.ReceivedAt = rec.ReceivedAt.UTC()
	return rec, nil
}

// jsonText sends JSON as text so the driver does not encode it as bytea.
func jsonText(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func isUniqueViolation(err error) bool {
	return hasSQLState(err, "23505")
}

type sqlStateProvider interface {
	SQLState() string
}

func hasSQLState(err error, code string) bool {
	if err == nil {
		return false
	}
	var stateErr sqlStateProvider
	if errors.As(err, &stateErr) && stateErr.SQLState() == code {
		return true
	}
	// Fallback for drivers that only surface SQLSTATE in error text.
	return strings.Contains(err.Error(), "SQLSTATE "+code)
}
