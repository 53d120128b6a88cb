package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// setupDDL creates the snapshot schema. Idempotent: every statement is
// IF NOT EXISTS.
const setupDDL = `
CREATE SCHEMA IF NOT EXISTS sourcegauge;

CREATE TABLE IF NOT EXISTS sourcegauge.collection_runs (
	run_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'running',
	tables_analyzed INT DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sourcegauge.table_size_snapshots (
	snapshot_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	run_id BIGINT NOT NULL REFERENCES sourcegauge.collection_runs(run_id),
	schema_name TEXT NOT NULL,
	table_name TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	row_count BIGINT NOT NULL,
	avg_row_size_bytes NUMERIC,
	table_data_size_bytes BIGINT,
	index_size_bytes BIGINT,
	toast_size_bytes BIGINT,
	total_size_bytes BIGINT,
	bloat_ratio NUMERIC,
	n_live_tup BIGINT,
	n_dead_tup BIGINT,
	n_tup_ins BIGINT,
	n_tup_upd BIGINT,
	n_tup_del BIGINT
);

CREATE TABLE IF NOT EXISTS sourcegauge.growth_history (
	growth_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	run_id BIGINT NOT NULL REFERENCES sourcegauge.collection_runs(run_id),
	schema_name TEXT NOT NULL,
	table_name TEXT NOT NULL,
	source_column TEXT NOT NULL,
	period_start DATE NOT NULL,
	rows_added BIGINT NOT NULL,
	cumulative_rows BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS sourcegauge.database_snapshots (
	db_snapshot_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	run_id BIGINT NOT NULL REFERENCES sourcegauge.collection_runs(run_id),
	captured_at TIMESTAMPTZ NOT NULL,
	total_database_size_bytes BIGINT,
	shared_buffers TEXT,
	work_mem TEXT,
	temp_buffers TEXT,
	max_connections INT,
	temp_files_count BIGINT,
	temp_bytes BIGINT
);

CREATE INDEX IF NOT EXISTS idx_size_snapshots_run ON sourcegauge.table_size_snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_size_snapshots_table ON sourcegauge.table_size_snapshots(schema_name, table_name, captured_at);
CREATE INDEX IF NOT EXISTS idx_growth_history_run ON sourcegauge.growth_history(run_id);
CREATE INDEX IF NOT EXISTS idx_growth_history_table ON sourcegauge.growth_history(schema_name, table_name, period_start);
`

const insertRun = `
	INSERT INTO sourcegauge.collection_runs (started_at, status)
	VALUES (now(), 'running')
	RETURNING run_id`

const updateRun = `
	UPDATE sourcegauge.collection_runs
	SET completed_at = now(), status = $2, tables_analyzed = $3
	WHERE run_id = $1`

const insertSnapshot = `
	INSERT INTO sourcegauge.table_size_snapshots (
		run_id, schema_name, table_name, captured_at,
		row_count, avg_row_size_bytes,
		table_data_size_bytes, index_size_bytes, toast_size_bytes, total_size_bytes,
		bloat_ratio,
		n_live_tup, n_dead_tup, n_tup_ins, n_tup_upd, n_tup_del
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const insertGrowth = `
	INSERT INTO sourcegauge.growth_history (
		run_id, schema_name, table_name, source_column,
		period_start, rows_added, cumulative_rows
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertDatabaseSnapshot = `
	INSERT INTO sourcegauge.database_snapshots (
		run_id, captured_at, total_database_size_bytes,
		shared_buffers, work_mem, temp_buffers, max_connections,
		temp_files_count, temp_bytes
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// selectLatestDatabase reads the database snapshot from the most recent
// successful run.
const selectLatestDatabase = `
	SELECT d.captured_at, COALESCE(d.total_database_size_bytes, 0),
		COALESCE(d.shared_buffers, ''), COALESCE(d.work_mem, ''),
		COALESCE(d.temp_buffers, ''), COALESCE(d.max_connections, 0),
		COALESCE(d.temp_files_count, 0), COALESCE(d.temp_bytes, 0)
	FROM sourcegauge.database_snapshots d
	JOIN sourcegauge.collection_runs r ON r.run_id = d.run_id
	WHERE r.status = 'success'
	ORDER BY d.db_snapshot_id DESC
	LIMIT 1`

const selectSnapshots = `
	SELECT captured_at, row_count, COALESCE(avg_row_size_bytes, 0)::float8,
		COALESCE(table_data_size_bytes, 0), COALESCE(index_size_bytes, 0),
		COALESCE(toast_size_bytes, 0), COALESCE(total_size_bytes, 0),
		COALESCE(bloat_ratio, 0)::float8,
		COALESCE(n_live_tup, 0), COALESCE(n_dead_tup, 0),
		COALESCE(n_tup_ins, 0), COALESCE(n_tup_upd, 0), COALESCE(n_tup_del, 0)
	FROM sourcegauge.table_size_snapshots
	WHERE schema_name = $1 AND table_name = $2
	ORDER BY captured_at`

// selectGrowthHistory reads the latest successful run's growth points only:
// each run rewrites the full monthly series, so older runs are superseded.
const selectGrowthHistory = `
	SELECT source_column, period_start, rows_added, cumulative_rows
	FROM sourcegauge.growth_history
	WHERE schema_name = $1 AND table_name = $2
		AND run_id = (
			SELECT max(g.run_id)
			FROM sourcegauge.growth_history g
			JOIN sourcegauge.collection_runs r ON r.run_id = g.run_id
			WHERE g.schema_name = $1 AND g.table_name = $2
				AND r.status = 'success'
		)
	ORDER BY period_start`

const selectSnapshotTables = `
	SELECT DISTINCT schema_name, table_name
	FROM sourcegauge.table_size_snapshots
	WHERE schema_name = $1
	ORDER BY table_name`

// Store persists the snapshot series in a dedicated schema on the source
// database, in the shape SnapshotStore requires: append-only, readable as a
// per-table time series.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, setupDDL); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

func (s *Store) BeginRun(ctx context.Context) (int64, error) {
	var runID int64
	if err := s.pool.QueryRow(ctx, insertRun).Scan(&runID); err != nil {
		return 0, fmt.Errorf("inserting collection run: %w", err)
	}
	return runID, nil
}

func (s *Store) FinishRun(ctx context.Context, runID int64, tablesAnalyzed int, status port.RunStatus) error {
	if _, err := s.pool.Exec(ctx, updateRun, runID, string(status), tablesAnalyzed); err != nil {
		return fmt.Errorf("updating collection run: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, runID int64, snap port.SizeSnapshot) error {
	_, err := s.pool.Exec(ctx, insertSnapshot,
		runID, snap.Schema, snap.Table, snap.CapturedAt,
		snap.RowCount, snap.AvgRowSize,
		snap.TableBytes, snap.IndexBytes, snap.ToastBytes, snap.TotalBytes,
		snap.BloatRatio,
		snap.LiveTuples, snap.DeadTuples, snap.Inserts, snap.Updates, snap.Deletes,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

func (s *Store) AppendGrowth(ctx context.Context, runID int64, point port.GrowthPoint) error {
	_, err := s.pool.Exec(ctx, insertGrowth,
		runID, point.Schema, point.Table, point.SourceColumn,
		point.Month, point.RowsAdded, point.CumulativeRows,
	)
	if err != nil {
		return fmt.Errorf("inserting growth point: %w", err)
	}
	return nil
}

func (s *Store) AppendDatabase(ctx context.Context, runID int64, snap port.DatabaseSnapshot) error {
	_, err := s.pool.Exec(ctx, insertDatabaseSnapshot,
		runID, snap.CapturedAt, snap.TotalBytes,
		snap.SharedBuffers, snap.WorkMem, snap.TempBuffers, snap.MaxConnections,
		snap.TempFiles, snap.TempBytes,
	)
	if err != nil {
		return fmt.Errorf("inserting database snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestDatabase(ctx context.Context) (port.DatabaseSnapshot, error) {
	var snap port.DatabaseSnapshot
	err := s.pool.QueryRow(ctx, selectLatestDatabase).Scan(
		&snap.CapturedAt, &snap.TotalBytes,
		&snap.SharedBuffers, &snap.WorkMem, &snap.TempBuffers, &snap.MaxConnections,
		&snap.TempFiles, &snap.TempBytes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, domain.ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("fetching database snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) Snapshots(ctx context.Context, table port.TableRef) ([]port.SizeSnapshot, error) {
	rows, err := s.pool.Query(ctx, selectSnapshots, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []port.SizeSnapshot
	for rows.Next() {
		snap := port.SizeSnapshot{Schema: table.Schema, Table: table.Name}
		if err := rows.Scan(
			&snap.CapturedAt, &snap.RowCount, &snap.AvgRowSize,
			&snap.TableBytes, &snap.IndexBytes, &snap.ToastBytes, &snap.TotalBytes,
			&snap.BloatRatio,
			&snap.LiveTuples, &snap.DeadTuples,
			&snap.Inserts, &snap.Updates, &snap.Deletes,
		); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snaps, nil
}

func (s *Store) GrowthHistory(ctx context.Context, table port.TableRef) ([]port.GrowthPoint, error) {
	rows, err := s.pool.Query(ctx, selectGrowthHistory, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching growth history: %w", err)
	}
	defer rows.Close()

	var points []port.GrowthPoint
	for rows.Next() {
		p := port.GrowthPoint{Schema: table.Schema, Table: table.Name}
		if err := rows.Scan(&p.SourceColumn, &p.Month, &p.RowsAdded, &p.CumulativeRows); err != nil {
			return nil, fmt.Errorf("scanning growth row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating growth history: %w", err)
	}
	return points, nil
}

func (s *Store) SnapshotTables(ctx context.Context, schema string) ([]port.TableRef, error) {
	rows, err := s.pool.Query(ctx, selectSnapshotTables, schema)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot tables: %w", err)
	}
	defer rows.Close()

	var refs []port.TableRef
	for rows.Next() {
		var ref port.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("scanning table ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table refs: %w", err)
	}
	return refs, nil
}
