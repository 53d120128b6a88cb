package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

func TestClassifyWriteProfile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		ins, upd, del int64
		want          WriteProfile
	}{
		{"no activity", 0, 0, 0, ProfileUnknown},
		{"append only", 900, 50, 50, ProfileAppendOnly},
		{"pure inserts", 100, 0, 0, ProfileAppendOnly},
		{"update heavy", 300, 600, 100, ProfileUpdateHeavy},
		{"delete heavy", 400, 200, 400, ProfileDeleteHeavy},
		{"mixed", 500, 300, 200, ProfileMixed},
		{"append threshold is exclusive", 80, 10, 10, ProfileMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyWriteProfile(tt.ins, tt.upd, tt.del))
		})
	}
}

func growthHistory(monthly []int64) []port.GrowthPoint {
	points := make([]port.GrowthPoint, 0, len(monthly))
	month := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	var cumulative int64
	for _, added := range monthly {
		cumulative += added
		points = append(points, port.GrowthPoint{
			Schema: "public", Table: "orders", SourceColumn: "created_at",
			Month: month, RowsAdded: added, CumulativeRows: cumulative,
		})
		month = month.AddDate(0, 1, 0)
	}
	return points
}

// snapshotSeries builds one snapshot per month with the given row counts.
func snapshotSeries(rowCounts []int64) []port.SizeSnapshot {
	snaps := make([]port.SizeSnapshot, 0, len(rowCounts))
	captured := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, rows := range rowCounts {
		snaps = append(snaps, port.SizeSnapshot{
			Schema: "public", Table: "orders",
			CapturedAt: captured, RowCount: rows,
		})
		captured = captured.AddDate(0, 1, 0)
	}
	return snaps
}

func TestEstimateTrend_Direction(t *testing.T) {
	t.Parallel()
	snaps := snapshotSeries([]int64{10000})

	increasing := EstimateTrend(snaps, growthHistory([]int64{1000, 1000, 1000, 1000}))
	assert.Equal(t, DirectionIncreasing, increasing.Direction)
	assert.Equal(t, 1000.0, increasing.AvgMonthlyGrowthRows)
	assert.Equal(t, 4, increasing.DataPoints)

	decreasing := EstimateTrend(snaps, growthHistory([]int64{0, -500, -500, -500}))
	assert.Equal(t, DirectionDecreasing, decreasing.Direction)

	flat := EstimateTrend(snaps, growthHistory([]int64{5, 0, 0, 0}))
	assert.Equal(t, DirectionStable, flat.Direction)
}

func TestEstimateTrend_SnapshotFallback(t *testing.T) {
	t.Parallel()

	// No growth history at all: the snapshot row counts carry the trend.
	increasing := EstimateTrend(snapshotSeries([]int64{1000, 2000, 3000}), nil)
	assert.Equal(t, DirectionIncreasing, increasing.Direction)
	assert.Equal(t, 3, increasing.DataPoints)
	assert.InDelta(t, 1000.0, increasing.AvgMonthlyGrowthRows, 30)

	decreasing := EstimateTrend(snapshotSeries([]int64{3000, 2000, 1000}), nil)
	assert.Equal(t, DirectionDecreasing, decreasing.Direction)

	flat := EstimateTrend(snapshotSeries([]int64{2000, 2000, 2000}), nil)
	assert.Equal(t, DirectionStable, flat.Direction)
	assert.Zero(t, flat.AvgMonthlyGrowthRows)

	// Two or more history points take priority over the snapshot series.
	preferred := EstimateTrend(snapshotSeries([]int64{1000, 2000, 3000}),
		growthHistory([]int64{0, -500, -500, -500}))
	assert.Equal(t, DirectionDecreasing, preferred.Direction)
	assert.Equal(t, 4, preferred.DataPoints)
}

func TestEstimateTrend_InsufficientHistory(t *testing.T) {
	t.Parallel()
	snaps := snapshotSeries([]int64{500})

	none := EstimateTrend(snaps, nil)
	assert.Equal(t, DirectionStable, none.Direction)
	assert.Zero(t, none.AvgMonthlyGrowthRows)
	assert.Zero(t, none.DataPoints)

	one := EstimateTrend(snaps, growthHistory([]int64{100}))
	assert.Equal(t, DirectionStable, one.Direction)
	assert.Zero(t, one.AvgMonthlyGrowthRows)
	assert.Equal(t, 1, one.DataPoints)

	// Same-instant snapshots give no spacing to normalize over.
	sameInstant := []port.SizeSnapshot{
		{Table: "orders", CapturedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), RowCount: 100},
		{Table: "orders", CapturedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), RowCount: 200},
	}
	degenerate := EstimateTrend(sameInstant, nil)
	assert.Equal(t, DirectionStable, degenerate.Direction)
	assert.Zero(t, degenerate.DataPoints)
}

func TestEstimateTrend_CarriesSnapshotFacts(t *testing.T) {
	t.Parallel()
	snap := port.SizeSnapshot{
		Schema:     "public",
		Table:      "orders",
		RowCount:   10000,
		TotalBytes: 4 << 20,
		AvgRowSize: 120,
		BloatRatio: 1.3,
		Inserts:    950,
		Updates:    25,
		Deletes:    25,
	}

	trend := EstimateTrend([]port.SizeSnapshot{snap}, nil)

	assert.Equal(t, int64(10000), trend.RowCount)
	assert.Equal(t, int64(4<<20), trend.TotalBytes)
	assert.Equal(t, "4.0 MB", trend.SizeHuman)
	assert.Equal(t, 120.0, trend.AvgRowSize)
	assert.Equal(t, 1.3, trend.BloatRatio)
	assert.Equal(t, ProfileAppendOnly, trend.Profile)
}

func TestEstimateTrend_IndexOverheadAndBloat(t *testing.T) {
	t.Parallel()
	snap := port.SizeSnapshot{
		Table:      "orders",
		TableBytes: 1000,
		IndexBytes: 500,
		BloatRatio: 1.2,
	}
	trend := EstimateTrend([]port.SizeSnapshot{snap}, nil)
	assert.Equal(t, 0.5, trend.indexOverhead)
	assert.Equal(t, 1.2, trend.bloatFactor)

	// Negligible index share falls back to no overhead.
	snap = port.SizeSnapshot{Table: "orders", TableBytes: 1000, IndexBytes: 50}
	trend = EstimateTrend([]port.SizeSnapshot{snap}, nil)
	assert.Equal(t, 1.0, trend.indexOverhead)
	assert.Equal(t, 1.0, trend.bloatFactor)

	// No table bytes at all.
	trend = EstimateTrend([]port.SizeSnapshot{{Table: "orders"}}, nil)
	assert.Equal(t, 1.0, trend.indexOverhead)
}

func TestLeastSquaresSlope(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 2.0, leastSquaresSlope([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7}), 1e-9)
	assert.InDelta(t, -1.0, leastSquaresSlope([]float64{0, 1, 2}, []float64{5, 4, 3}), 1e-9)
	assert.Zero(t, leastSquaresSlope([]float64{1}, []float64{1}))
	assert.Zero(t, leastSquaresSlope([]float64{2, 2, 2}, []float64{1, 2, 3}))
	assert.Zero(t, leastSquaresSlope([]float64{1, 2}, []float64{1}))
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0.0 B"},
		{-1, "0 B"},
		{512, "512.0 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
		{2 << 40, "2.0 TB"},
		{1 << 50, "1.0 PB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.n))
	}
}
