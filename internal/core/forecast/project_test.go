package forecast

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

func TestProject_LinearExtrapolation(t *testing.T) {
	t.Parallel()
	trend := EstimateTrend(
		[]port.SizeSnapshot{{
			Schema: "public", Table: "orders",
			RowCount: 10000, AvgRowSize: 100, TableBytes: 1000000, IndexBytes: 200000,
		}},
		growthHistory([]int64{500, 500, 500}),
	)

	tp := Project(trend, []int{6, 12})

	require.Len(t, tp.Projections, 2)
	assert.Equal(t, 6, tp.Projections[0].Months)
	assert.Equal(t, int64(13000), tp.Projections[0].Rows)
	assert.Equal(t, int64(16000), tp.Projections[1].Rows)

	// rows * avg_row_size * index_overhead (0.2)
	assert.Equal(t, int64(260000), tp.Projections[0].SizeBytes)
}

func TestProject_ClampsAtZeroRows(t *testing.T) {
	t.Parallel()
	trend := EstimateTrend(
		[]port.SizeSnapshot{{Table: "shrinking", RowCount: 1000, TotalBytes: 5000}},
		growthHistory([]int64{-800, -800}),
	)

	tp := Project(trend, []int{12})

	require.Len(t, tp.Projections, 1)
	assert.Zero(t, tp.Projections[0].Rows)
	// Without projected rows the current size carries forward.
	assert.Equal(t, int64(5000), tp.Projections[0].SizeBytes)
}

func TestProject_NoHistoryKeepsCurrentState(t *testing.T) {
	t.Parallel()
	trend := EstimateTrend([]port.SizeSnapshot{{Table: "static", RowCount: 42, TotalBytes: 8192}}, nil)

	tp := Project(trend, nil)

	require.Len(t, tp.Projections, len(DefaultHorizons))
	for _, est := range tp.Projections {
		assert.Equal(t, int64(42), est.Rows)
	}
}

func TestProject_Deterministic(t *testing.T) {
	t.Parallel()
	trend := EstimateTrend(
		[]port.SizeSnapshot{{Table: "orders", RowCount: 10000, AvgRowSize: 100}},
		growthHistory([]int64{500, 600, 700}),
	)

	first := Project(trend, []int{6, 12, 24})
	second := Project(trend, []int{6, 12, 24})
	assert.Equal(t, first, second)
}

func TestRollup(t *testing.T) {
	t.Parallel()
	projections := make([]TableProjection, 0, 7)
	for i := 0; i < 7; i++ {
		trend := EstimateTrend(
			[]port.SizeSnapshot{{
				Schema:   "public",
				Table:    fmt.Sprintf("t%d", i),
				RowCount: int64(1000 * (i + 1)),
				// t6 is largest.
				TotalBytes: int64(1 << (10 + i)),
				AvgRowSize: 50,
			}},
			// t0 grows fastest.
			growthHistory([]int64{int64(700 - 100*i), int64(700 - 100*i)}),
		)
		projections = append(projections, Project(trend, []int{6}))
	}

	df := Rollup(projections, []int{6})

	assert.Equal(t, 7, df.TablesAnalyzed)

	var wantTotal int64
	for i := 0; i < 7; i++ {
		wantTotal += int64(1 << (10 + i))
	}
	assert.Equal(t, wantTotal, df.CurrentSizeBytes)
	assert.Equal(t, FormatBytes(wantTotal), df.CurrentSizeHuman)
	assert.Contains(t, df.ProjectedBytes, 6)
	assert.Contains(t, df.ProjectedHuman, 6)

	require.Len(t, df.FastestGrowing, 5)
	assert.Equal(t, "t0", df.FastestGrowing[0].Table)
	assert.Equal(t, 700.0, df.FastestGrowing[0].AvgMonthlyGrowth)

	require.Len(t, df.Largest, 5)
	assert.Equal(t, "t6", df.Largest[0].Table)
	assert.Equal(t, "t5", df.Largest[1].Table)
}

func TestRollup_FewerThanFiveTables(t *testing.T) {
	t.Parallel()
	trend := EstimateTrend([]port.SizeSnapshot{{Table: "only", TotalBytes: 100}}, nil)
	df := Rollup([]TableProjection{Project(trend, nil)}, nil)

	assert.Equal(t, 1, df.TablesAnalyzed)
	assert.Len(t, df.FastestGrowing, 1)
	assert.Len(t, df.Largest, 1)
}
