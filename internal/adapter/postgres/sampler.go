package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// distinctValueLimit caps how many distinct values ColumnStats returns.
const distinctValueLimit = 50

// orphanSampleLimit caps the orphan value sample returned by CountOrphans.
const orphanSampleLimit = 5

// Sampler reads live table data for the checks that need it. Every statement
// is assembled from quoted introspected identifiers and validated by the
// read-only guard before it reaches the pool.
type Sampler struct {
	pool         *pgxpool.Pool
	guard        *domain.ReadOnlyGuard
	queryTimeout time.Duration
}

func NewSampler(pool *pgxpool.Pool, guard *domain.ReadOnlyGuard, queryTimeout time.Duration) *Sampler {
	return &Sampler{pool: pool, guard: guard, queryTimeout: queryTimeout}
}

func (s *Sampler) ColumnStats(ctx context.Context, table port.TableRef, column string) (port.ColumnSample, error) {
	var sample port.ColumnSample
	col := quoteIdent(column)
	target := qualify(table.Schema, table.Name)

	statsSQL := fmt.Sprintf(
		"SELECT COUNT(DISTINCT %s), COUNT(*) - COUNT(%s), MIN(%s)::text, MAX(%s)::text FROM %s",
		col, col, col, col, target)
	if err := s.guard.Validate(statsSQL); err != nil {
		return sample, fmt.Errorf("column stats statement rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var minVal, maxVal *string
	if err := s.pool.QueryRow(ctx, statsSQL).Scan(&sample.Cardinality, &sample.NullCount, &minVal, &maxVal); err != nil {
		return sample, fmt.Errorf("fetching column stats: %w", mapQueryError(err))
	}
	if minVal != nil {
		sample.Min = *minVal
	}
	if maxVal != nil {
		sample.Max = *maxVal
	}

	distinctSQL := fmt.Sprintf(
		"SELECT DISTINCT %s::text FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT %d",
		col, target, col, distinctValueLimit)
	if err := s.guard.Validate(distinctSQL); err != nil {
		return sample, fmt.Errorf("distinct values statement rejected: %w", err)
	}
	rows, err := s.pool.Query(ctx, distinctSQL)
	if err != nil {
		return sample, fmt.Errorf("fetching distinct values: %w", mapQueryError(err))
	}
	sample.DistinctValues, err = scanStrings(rows)
	if err != nil {
		return sample, fmt.Errorf("fetching distinct values: %w", err)
	}
	return sample, nil
}

func (s *Sampler) SampleRows(ctx context.Context, table port.TableRef, columns []string, limit int) ([]map[string]any, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns to sample", domain.ErrDataShape)
	}

	quoted := make([]string, len(columns))
	notNull := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		notNull[i] = quoteIdent(c) + " IS NOT NULL"
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT %d",
		strings.Join(quoted, ", "),
		qualify(table.Schema, table.Name),
		strings.Join(notNull, " OR "),
		limit)
	if err := s.guard.Validate(sql); err != nil {
		return nil, fmt.Errorf("sample statement rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("sampling rows: %w", mapQueryError(err))
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func (s *Sampler) CountOrphans(ctx context.Context, table port.TableRef, column, refTable, refColumn string) (int64, []string, error) {
	col := quoteIdent(column)
	src := qualify(table.Schema, table.Name)
	ref := qualify(table.Schema, refTable)
	refCol := quoteIdent(refColumn)

	countSQL := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s t WHERE t.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s r WHERE r.%s = t.%s)",
		src, col, ref, refCol, col)
	if err := s.guard.Validate(countSQL); err != nil {
		return 0, nil, fmt.Errorf("orphan count statement rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var count int64
	if err := s.pool.QueryRow(ctx, countSQL).Scan(&count); err != nil {
		return 0, nil, fmt.Errorf("counting orphans: %w", mapQueryError(err))
	}
	if count == 0 {
		return 0, nil, nil
	}

	sampleSQL := fmt.Sprintf(
		"SELECT DISTINCT t.%s::text FROM %s t WHERE t.%s IS NOT NULL AND NOT EXISTS (SELECT 1 FROM %s r WHERE r.%s = t.%s) LIMIT %d",
		col, src, col, ref, refCol, col, orphanSampleLimit)
	if err := s.guard.Validate(sampleSQL); err != nil {
		return count, nil, fmt.Errorf("orphan sample statement rejected: %w", err)
	}
	rows, err := s.pool.Query(ctx, sampleSQL)
	if err != nil {
		return count, nil, fmt.Errorf("sampling orphans: %w", mapQueryError(err))
	}
	values, err := scanStrings(rows)
	if err != nil {
		return count, nil, fmt.Errorf("sampling orphans: %w", err)
	}
	return count, values, nil
}

func (s *Sampler) ServerTimezone(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var tz string
	if err := s.pool.QueryRow(ctx, queryServerTimezone).Scan(&tz); err != nil {
		return domain.UnknownTimezone
	}
	return tz
}
