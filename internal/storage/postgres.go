// Package storage writes canonical records to Postgres and reads them back
// for the dashboard.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"wisegate/internal/config"
	"wisegate/internal/constants"
	"wisegate/internal/logger"
	"wisegate/internal/normalize"
	apperrors "wisegate/pkg/errors"
	"wisegate/pkg/metrics"
	"wisegate/pkg/tracing"
)

type Sink interface {
	Insert(ctx context.Context, table string, rec normalize.Record) error
}

type statement struct {
	kind  normalize.Kind
	query string
}

// PostgresSink inserts one record per transaction. Only tables given at
// construction can be written; their statements are built once.
type PostgresSink struct {
	db     *sql.DB
	stmts  map[string]statement
	logger logger.Logger
}

func NewPostgresSink(db *sql.DB, tables map[string]normalize.Kind, log logger.Logger) (*PostgresSink, error) {
	stmts := make(map[string]statement, len(tables))
	for table, kind := range tables {
		query, err := BuildInsert(table, kind)
		if err != nil {
			return nil, err
		}
		stmts[table] = statement{kind: kind, query: query}
	}
	return &PostgresSink{db: db, stmts: stmts, logger: log}, nil
}

func (s *PostgresSink) Insert(ctx context.Context, table string, rec normalize.Record) error {
	stmt, ok := s.stmts[table]
	if !ok {
		return apperrors.ErrStorage.
			WithMessage("table is not configured").
			WithDetail("table", table)
	}
	if stmt.kind != rec.Kind() {
		return apperrors.ErrStorage.
			WithMessage(fmt.Sprintf("table stores %s records, got %s", stmt.kind, rec.Kind())).
			WithDetail("table", table)
	}

	ctx, span := tracing.StartSpan(ctx, "storage.insert")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", table))

	ctx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()

	start := time.Now()
	err := s.exec(ctx, stmt.query, rec.Row())
	metrics.ObserveStorageInsertDuration(table, time.Since(start))

	if err != nil {
		span.RecordError(err)
		metrics.IncStorageInsert(table, "error")
		return apperrors.ErrStorage.WithCause(err).WithDetail("table", table)
	}
	metrics.IncStorageInsert(table, "success")
	return nil
}

func (s *PostgresSink) exec(ctx context.Context, query string, args []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WarnwCtx(ctx, "Rollback failed", "error", rbErr)
		}
		return fmt.Errorf("failed to insert row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// QuoteTable quotes a "schema.table" or "table" identity.
func QuoteTable(identity string) (string, error) {
	if !config.ValidTableIdentity(identity) {
		return "", fmt.Errorf("invalid table identity %q", identity)
	}
	parts := strings.Split(identity, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, "."), nil
}

// BuildInsert returns the parameterized INSERT for a table of the given kind.
func BuildInsert(table string, kind normalize.Kind) (string, error) {
	if !normalize.ValidKind(kind) {
		return "", fmt.Errorf("unknown record kind %q for table %s", kind, table)
	}
	quoted, err := QuoteTable(table)
	if err != nil {
		return "", err
	}

	cols := normalize.Columns(kind)
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pq.QuoteIdentifier(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoted, strings.Join(names, ", "), strings.Join(params, ", ")), nil
}
