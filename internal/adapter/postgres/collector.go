package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// Collector measures current table size and churn for the snapshot series.
type Collector struct {
	pool         *pgxpool.Pool
	guard        *domain.ReadOnlyGuard
	queryTimeout time.Duration
}

func NewCollector(pool *pgxpool.Pool, guard *domain.ReadOnlyGuard, queryTimeout time.Duration) *Collector {
	return &Collector{pool: pool, guard: guard, queryTimeout: queryTimeout}
}

func (c *Collector) CollectSnapshot(ctx context.Context, table port.TableRef) (port.SizeSnapshot, error) {
	snap := port.SizeSnapshot{
		Schema:     table.Schema,
		Table:      table.Name,
		CapturedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	var mainBytes int64
	err := c.pool.QueryRow(ctx, querySizeBreakdown, table.Schema, table.Name).
		Scan(&snap.TotalBytes, &snap.TableBytes, &snap.IndexBytes, &mainBytes)
	if err != nil {
		return snap, fmt.Errorf("fetching size breakdown: %w", err)
	}
	snap.ToastBytes = snap.TotalBytes - snap.TableBytes - snap.IndexBytes
	if snap.ToastBytes < 0 {
		snap.ToastBytes = 0
	}

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualify(table.Schema, table.Name))
	if err := c.guard.Validate(countSQL); err != nil {
		return snap, fmt.Errorf("row count statement rejected: %w", err)
	}
	if err := c.pool.QueryRow(ctx, countSQL).Scan(&snap.RowCount); err != nil {
		return snap, fmt.Errorf("counting rows: %w", err)
	}

	if snap.RowCount > 0 && mainBytes > 0 {
		snap.AvgRowSize = math.Round(float64(mainBytes)/float64(snap.RowCount)*100) / 100
		theoretical := float64(snap.RowCount) * snap.AvgRowSize
		if theoretical > 0 {
			snap.BloatRatio = math.Round(float64(snap.TableBytes)/theoretical*10000) / 10000
		}
	}

	err = c.pool.QueryRow(ctx, queryChurn, table.Schema, table.Name).
		Scan(&snap.LiveTuples, &snap.DeadTuples, &snap.Inserts, &snap.Updates, &snap.Deletes)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("fetching churn counters: %w", err)
	}
	return snap, nil
}

func (c *Collector) CollectDatabase(ctx context.Context) (port.DatabaseSnapshot, error) {
	snap := port.DatabaseSnapshot{CapturedAt: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	if err := c.pool.QueryRow(ctx, queryDatabaseSize).Scan(&snap.TotalBytes); err != nil {
		return snap, fmt.Errorf("fetching database size: %w", err)
	}

	rows, err := c.pool.Query(ctx, queryServerSettings)
	if err != nil {
		return snap, fmt.Errorf("fetching server settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, setting string
		if err := rows.Scan(&name, &setting); err != nil {
			return snap, fmt.Errorf("scanning server setting: %w", err)
		}
		switch name {
		case "shared_buffers":
			snap.SharedBuffers = setting
		case "work_mem":
			snap.WorkMem = setting
		case "temp_buffers":
			snap.TempBuffers = setting
		case "max_connections":
			if n, convErr := strconv.Atoi(setting); convErr == nil {
				snap.MaxConnections = n
			}
		}
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterating server settings: %w", err)
	}

	err = c.pool.QueryRow(ctx, queryTempUsage).Scan(&snap.TempFiles, &snap.TempBytes)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("fetching temp usage: %w", err)
	}
	return snap, nil
}

func (c *Collector) CollectGrowth(ctx context.Context, table port.TableRef, cutoff time.Time) ([]port.GrowthPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	var sourceColumn string
	err := c.pool.QueryRow(ctx, queryGrowthColumn, table.Schema, table.Name).Scan(&sourceColumn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving growth column: %w", err)
	}

	col := quoteIdent(sourceColumn)
	sql := fmt.Sprintf(
		"SELECT date_trunc('month', %s)::date AS period_start, COUNT(*) AS rows_added FROM %s WHERE %s >= $1 GROUP BY date_trunc('month', %s) ORDER BY period_start",
		col, qualify(table.Schema, table.Name), col, col)
	if err := c.guard.Validate(sql); err != nil {
		return nil, fmt.Errorf("growth statement rejected: %w", err)
	}

	rows, err := c.pool.Query(ctx, sql, cutoff)
	if err != nil {
		return nil, fmt.Errorf("fetching growth history: %w", err)
	}
	defer rows.Close()

	var points []port.GrowthPoint
	var cumulative int64
	for rows.Next() {
		var month time.Time
		var added int64
		if err := rows.Scan(&month, &added); err != nil {
			return nil, fmt.Errorf("scanning growth row: %w", err)
		}
		cumulative += added
		points = append(points, port.GrowthPoint{
			Schema:         table.Schema,
			Table:          table.Name,
			SourceColumn:   sourceColumn,
			Month:          month,
			RowsAdded:      added,
			CumulativeRows: cumulative,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating growth rows: %w", err)
	}
	return points, nil
}
