package forecast

import (
	"sort"

	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// DefaultHorizons are the projection horizons in months.
var DefaultHorizons = []int{6, 12, 24}

// SizeEstimate is a projected size at one horizon.
type SizeEstimate struct {
	Months    int    `json:"months"`
	Rows      int64  `json:"estimated_rows"`
	SizeBytes int64  `json:"estimated_size_bytes"`
	SizeHuman string `json:"estimated_size_human"`
}

// TableProjection is the forecast for one table across all horizons.
type TableProjection struct {
	Schema      string         `json:"schema"`
	Table       string         `json:"table"`
	Trend       Trend          `json:"trend"`
	Projections []SizeEstimate `json:"projections"`
}

// HighlightedTable appears in the database rollup's top lists.
type HighlightedTable struct {
	Table            string  `json:"table"`
	AvgMonthlyGrowth float64 `json:"avg_monthly_growth,omitempty"`
	SizeHuman        string  `json:"size_human,omitempty"`
}

// ServerProfile carries database-level facts from the latest collection run:
// measured total size and the settings that bound capacity. The temp-file
// counters are cumulative since the last stats reset.
type ServerProfile struct {
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TotalSizeHuman string `json:"total_size_human"`
	SharedBuffers  string `json:"shared_buffers,omitempty"`
	WorkMem        string `json:"work_mem,omitempty"`
	TempBuffers    string `json:"temp_buffers,omitempty"`
	MaxConnections int    `json:"max_connections,omitempty"`
	TempFiles      int64  `json:"temp_files_count"`
	TempBytes      int64  `json:"temp_bytes"`
	TempSizeHuman  string `json:"temp_size_human"`
}

// ServerFromSnapshot shapes a stored database snapshot for the report.
func ServerFromSnapshot(snap port.DatabaseSnapshot) *ServerProfile {
	return &ServerProfile{
		TotalSizeBytes: snap.TotalBytes,
		TotalSizeHuman: FormatBytes(snap.TotalBytes),
		SharedBuffers:  snap.SharedBuffers,
		WorkMem:        snap.WorkMem,
		TempBuffers:    snap.TempBuffers,
		MaxConnections: snap.MaxConnections,
		TempFiles:      snap.TempFiles,
		TempBytes:      snap.TempBytes,
		TempSizeHuman:  FormatBytes(snap.TempBytes),
	}
}

// DatabaseForecast rolls per-table projections up to the whole database.
// Server is nil until a collection run has captured a database snapshot.
type DatabaseForecast struct {
	TablesAnalyzed   int                `json:"tables_analyzed"`
	CurrentSizeBytes int64              `json:"current_total_size_bytes"`
	CurrentSizeHuman string             `json:"current_total_size_human"`
	ProjectedBytes   map[int]int64      `json:"projected_size_bytes_by_horizon"`
	ProjectedHuman   map[int]string     `json:"projected_size_human_by_horizon"`
	FastestGrowing   []HighlightedTable `json:"fastest_growing_tables"`
	Largest          []HighlightedTable `json:"largest_tables"`
	Server           *ServerProfile     `json:"server,omitempty"`
}

// Project extrapolates a trend linearly across the given horizons. Projected
// rows never go below zero, a shrinking table bottoms out empty rather than
// negative. Without an average row size the current size carries forward
// unchanged.
func Project(t Trend, horizons []int) TableProjection {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	tp := TableProjection{
		Schema:      t.Schema,
		Table:       t.Table,
		Trend:       t,
		Projections: make([]SizeEstimate, 0, len(horizons)),
	}
	for _, months := range horizons {
		rows := t.RowCount
		if t.DataPoints >= 2 {
			rows = t.RowCount + int64(t.AvgMonthlyGrowthRows*float64(months))
			if rows < 0 {
				rows = 0
			}
		}
		size := t.TotalBytes
		if t.AvgRowSize > 0 && rows > 0 {
			base := float64(rows) * t.AvgRowSize
			size = int64(base * t.indexOverhead * t.bloatFactor)
		}
		tp.Projections = append(tp.Projections, SizeEstimate{
			Months:    months,
			Rows:      rows,
			SizeBytes: size,
			SizeHuman: FormatBytes(size),
		})
	}
	return tp
}

// Rollup aggregates table projections into a database-level forecast with the
// five fastest-growing and five largest tables highlighted.
func Rollup(projections []TableProjection, horizons []int) DatabaseForecast {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	df := DatabaseForecast{
		TablesAnalyzed: len(projections),
		ProjectedBytes: make(map[int]int64, len(horizons)),
		ProjectedHuman: make(map[int]string, len(horizons)),
	}

	for _, tp := range projections {
		df.CurrentSizeBytes += tp.Trend.TotalBytes
		for _, est := range tp.Projections {
			df.ProjectedBytes[est.Months] += est.SizeBytes
		}
	}
	df.CurrentSizeHuman = FormatBytes(df.CurrentSizeBytes)
	for _, months := range horizons {
		df.ProjectedHuman[months] = FormatBytes(df.ProjectedBytes[months])
	}

	byGrowth := append([]TableProjection(nil), projections...)
	sort.SliceStable(byGrowth, func(i, j int) bool {
		return byGrowth[i].Trend.AvgMonthlyGrowthRows > byGrowth[j].Trend.AvgMonthlyGrowthRows
	})
	for _, tp := range byGrowth[:minInt(5, len(byGrowth))] {
		df.FastestGrowing = append(df.FastestGrowing, HighlightedTable{
			Table:            tp.Table,
			AvgMonthlyGrowth: tp.Trend.AvgMonthlyGrowthRows,
		})
	}

	bySize := append([]TableProjection(nil), projections...)
	sort.SliceStable(bySize, func(i, j int) bool {
		return bySize[i].Trend.TotalBytes > bySize[j].Trend.TotalBytes
	})
	for _, tp := range bySize[:minInt(5, len(bySize))] {
		df.Largest = append(df.Largest, HighlightedTable{
			Table:     tp.Table,
			SizeHuman: tp.Trend.SizeHuman,
		})
	}
	return df
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
