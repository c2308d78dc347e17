package repositories

import (
	"context"
	"database/sql"
	"dispatch-coordination-service/internal/platform/db"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SQLStore implements the load, blast and alert repository ports on database/sql.
// The same queries serve SQLite and Postgres; only the placeholder format differs.
// Timestamps are stored as unix milliseconds so range comparisons behave the same
// on both engines.
type SQLStore struct {
	DB *sql.DB
	sb sq.StatementBuilderType
}

func NewSQLStore(conn *sql.DB, driver string) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if driver == db.DriverPostgres {
		format = sq.Dollar
	}
	return &SQLStore{
		DB: conn,
		sb: sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing only when fn returns nil.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.DB == nil {
		return errors.New("sql store: db is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db commit: %w", err)
	}
	return nil
}

func execAffected(ctx context.Context, r runner, b sq.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	res, err := r.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func queryRows(ctx context.Context, r runner, b sq.Sqlizer) (*sql.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.QueryContext(ctx, q, args...)
}

func queryRow(ctx context.Context, r runner, b sq.Sqlizer) (*sql.Row, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.QueryRowContext(ctx, q, args...), nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
