package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"wisegate/internal/normalize"
	apperrors "wisegate/pkg/errors"
	"wisegate/pkg/metrics"
)

// Point is one dashboard datapoint.
type Point struct {
	Value float64
	Time  time.Time
}

type QueryRepository struct {
	db *sql.DB
}

func NewQueryRepository(db *sql.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// Latest returns up to limit non-null values of field, newest first. field
// must be a queryable column of kind.
func (r *QueryRepository) Latest(ctx context.Context, table string, kind normalize.Kind, field string, limit int) ([]Point, error) {
	query, err := BuildLatest(table, kind, field)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, limit)
	metrics.ObserveDatabaseQueryDuration("latest", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var raw any
		var ts time.Time
		if err := rows.Scan(&raw, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan datapoint: %w", err)
		}
		v, err := numeric(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field, err)
		}
		points = append(points, Point{Value: v, Time: ts})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return points, nil
}

// BuildLatest returns the SELECT used by Latest; its only parameter is the
// row limit.
func BuildLatest(table string, kind normalize.Kind, field string) (string, error) {
	if !normalize.IsQueryable(kind, field) {
		return "", apperrors.ErrValidation.
			WithMessage(fmt.Sprintf("field %q is not queryable", field)).
			WithDetail("target", field)
	}
	quoted, err := QuoteTable(table)
	if err != nil {
		return "", err
	}
	col := pq.QuoteIdentifier(field)
	tsCol := pq.QuoteIdentifier(normalize.TimeColumn(kind))

	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s DESC LIMIT $1",
		col, tsCol, quoted, col, tsCol), nil
}

func numeric(v any) (float64, error) {
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("unsupported value type %T", v)
}
