package port

import (
	"context"
	"time"
)

// SizeSnapshot is one append-only row of the size/churn time series for a
// table. Snapshots are never updated or deleted; growth history derives
// entirely from the sequence ordered by CapturedAt.
type SizeSnapshot struct {
	Schema     string    `json:"schema"`
	Table      string    `json:"table"`
	CapturedAt time.Time `json:"captured_at"`

	RowCount   int64   `json:"row_count"`
	AvgRowSize float64 `json:"avg_row_size_bytes"`

	TotalBytes int64   `json:"total_size_bytes"`
	TableBytes int64   `json:"table_data_size_bytes"`
	IndexBytes int64   `json:"index_size_bytes"`
	ToastBytes int64   `json:"toast_size_bytes"`
	BloatRatio float64 `json:"bloat_ratio"`

	// Cumulative tuple counters from the source's statistics collector.
	Inserts    int64 `json:"inserts"`
	Updates    int64 `json:"updates"`
	Deletes    int64 `json:"deletes"`
	LiveTuples int64 `json:"live_tuples"`
	DeadTuples int64 `json:"dead_tuples"`
}

// GrowthPoint is one month of row growth derived from a business timestamp
// column (created_at and friends), distinct from captured_at-based snapshots.
// It feeds long-horizon trend fitting when churn samples are sparse.
type GrowthPoint struct {
	Schema         string    `json:"schema"`
	Table          string    `json:"table"`
	SourceColumn   string    `json:"source_column"`
	Month          time.Time `json:"month"`
	RowsAdded      int64     `json:"rows_added"`
	CumulativeRows int64     `json:"cumulative_rows"`
}

// DatabaseSnapshot captures whole-database size and the server settings that
// bound capacity: buffer sizes, connection limits, and the cumulative
// temp-file counters that betray spill-heavy workloads.
type DatabaseSnapshot struct {
	CapturedAt time.Time `json:"captured_at"`

	TotalBytes int64 `json:"total_size_bytes"`

	SharedBuffers  string `json:"shared_buffers"`
	WorkMem        string `json:"work_mem"`
	TempBuffers    string `json:"temp_buffers"`
	MaxConnections int    `json:"max_connections"`

	TempFiles int64 `json:"temp_files_count"`
	TempBytes int64 `json:"temp_bytes"`
}

// SnapshotCollector reads the live source to produce snapshot rows. The
// collector only measures; persistence belongs to SnapshotStore.
type SnapshotCollector interface {
	// CollectSnapshot measures current size and churn for one table.
	CollectSnapshot(ctx context.Context, table TableRef) (SizeSnapshot, error)

	// CollectGrowth derives monthly row growth from a creation-timestamp
	// column, back to the cutoff. Tables without such a column return an
	// empty slice, not an error.
	CollectGrowth(ctx context.Context, table TableRef, cutoff time.Time) ([]GrowthPoint, error)

	// CollectDatabase measures database-wide size and server settings.
	CollectDatabase(ctx context.Context) (DatabaseSnapshot, error)
}

// RunStatus marks the outcome of one collection run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// SnapshotStore is the durable, append-only home of the snapshot series.
// Concurrent collectors are assumed externally serialized; each run carries a
// distinct captured_at.
type SnapshotStore interface {
	// Setup creates the store's schema and tables if they do not exist.
	Setup(ctx context.Context) error

	// BeginRun opens a collection run and returns its id.
	BeginRun(ctx context.Context) (int64, error)

	// FinishRun records the outcome of a run.
	FinishRun(ctx context.Context, runID int64, tablesAnalyzed int, status RunStatus) error

	// Append writes one snapshot row. Snapshots are never mutated.
	Append(ctx context.Context, runID int64, snap SizeSnapshot) error

	// AppendGrowth writes one growth-history row.
	AppendGrowth(ctx context.Context, runID int64, point GrowthPoint) error

	// AppendDatabase writes one database-level snapshot row.
	AppendDatabase(ctx context.Context, runID int64, snap DatabaseSnapshot) error

	// LatestDatabase returns the database snapshot from the most recent
	// successful run, or domain.ErrNotFound when no run has captured one.
	LatestDatabase(ctx context.Context) (DatabaseSnapshot, error)

	// Snapshots returns the full series for a table ordered by captured_at.
	Snapshots(ctx context.Context, table TableRef) ([]SizeSnapshot, error)

	// GrowthHistory returns the most recent run's growth points for a table
	// ordered by month.
	GrowthHistory(ctx context.Context, table TableRef) ([]GrowthPoint, error)

	// SnapshotTables lists tables that have at least one snapshot.
	SnapshotTables(ctx context.Context, schema string) ([]TableRef, error)
}
