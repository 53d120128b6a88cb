// Package forecast turns the collected snapshot series into growth trends and
// capacity projections. All arithmetic is deterministic: the same store
// contents always produce the same projections.
package forecast

import (
	"fmt"
	"math"

	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// WriteProfile classifies how a table is written to, from the source's
// cumulative tuple counters.
type WriteProfile string

const (
	ProfileUnknown     WriteProfile = "unknown"
	ProfileAppendOnly  WriteProfile = "append_only"
	ProfileUpdateHeavy WriteProfile = "update_heavy"
	ProfileDeleteHeavy WriteProfile = "delete_heavy"
	ProfileMixed       WriteProfile = "mixed"
)

// Direction summarizes where the row count is heading.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// Trend captures the current state and growth characteristics of one table.
type Trend struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`

	RowCount   int64        `json:"row_count"`
	TotalBytes int64        `json:"total_size_bytes"`
	SizeHuman  string       `json:"total_size_human"`
	AvgRowSize float64      `json:"avg_row_size_bytes"`
	BloatRatio float64      `json:"bloat_ratio"`
	Profile    WriteProfile `json:"write_profile"`

	AvgMonthlyGrowthRows float64   `json:"avg_monthly_growth_rows"`
	Direction            Direction `json:"trend_direction"`
	DataPoints           int       `json:"data_points"`

	// Index overhead and bloat carried into size projections.
	indexOverhead float64
	bloatFactor   float64
}

// ClassifyWriteProfile buckets a table by the share of inserts, updates and
// deletes in its cumulative counters.
func ClassifyWriteProfile(ins, upd, del int64) WriteProfile {
	total := ins + upd + del
	if total == 0 {
		return ProfileUnknown
	}
	insPct := float64(ins) / float64(total)
	updPct := float64(upd) / float64(total)
	delPct := float64(del) / float64(total)
	switch {
	case insPct > 0.8:
		return ProfileAppendOnly
	case updPct > 0.5:
		return ProfileUpdateHeavy
	case delPct > 0.3:
		return ProfileDeleteHeavy
	default:
		return ProfileMixed
	}
}

// leastSquaresSlope fits y = a + b*x and returns b. Fewer than two points, or
// a degenerate x spread, yields zero.
func leastSquaresSlope(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return 0
	}
	var xMean, yMean float64
	for i := 0; i < n; i++ {
		xMean += x[i]
		yMean += y[i]
	}
	xMean /= float64(n)
	yMean /= float64(n)

	var numer, denom float64
	for i := 0; i < n; i++ {
		numer += (x[i] - xMean) * (y[i] - yMean)
		denom += (x[i] - xMean) * (x[i] - xMean)
	}
	if denom == 0 {
		return 0
	}
	return numer / denom
}

// EstimateTrend derives a table's trend from its snapshot series and monthly
// growth history. Direction comes from the slope of cumulative rows over the
// history; the slope must clear a tenth of the average monthly growth to count
// as a real move, otherwise the trend reads stable. With fewer than two
// history points the snapshot row counts stand in, normalized to months by
// capture spacing, so tables without a creation-timestamp column still get a
// measurable trend.
func EstimateTrend(snaps []port.SizeSnapshot, history []port.GrowthPoint) Trend {
	if len(snaps) == 0 {
		return Trend{Direction: DirectionStable, indexOverhead: 1.0, bloatFactor: 1.0}
	}
	latest := snaps[len(snaps)-1]
	t := Trend{
		Schema:     latest.Schema,
		Table:      latest.Table,
		RowCount:   latest.RowCount,
		TotalBytes: latest.TotalBytes,
		SizeHuman:  FormatBytes(latest.TotalBytes),
		AvgRowSize: latest.AvgRowSize,
		BloatRatio: latest.BloatRatio,
		Profile:    ClassifyWriteProfile(latest.Inserts, latest.Updates, latest.Deletes),
		Direction:  DirectionStable,
		DataPoints: len(history),
	}

	if len(history) >= 2 {
		x := make([]float64, len(history))
		y := make([]float64, len(history))
		var added float64
		for i, p := range history {
			x[i] = float64(i)
			y[i] = float64(p.CumulativeRows)
			added += float64(p.RowsAdded)
		}
		slope := leastSquaresSlope(x, y)
		t.AvgMonthlyGrowthRows = roundTo(added/float64(len(history)), 2)
		if slope > 0.1*t.AvgMonthlyGrowthRows {
			t.Direction = DirectionIncreasing
		} else if slope < -0.1*t.AvgMonthlyGrowthRows {
			t.Direction = DirectionDecreasing
		}
	} else if len(snaps) >= 2 {
		first := snaps[0]
		span := latest.CapturedAt.Sub(first.CapturedAt).Hours() / (24 * 30)
		if span > 0 {
			x := make([]float64, len(snaps))
			y := make([]float64, len(snaps))
			for i, s := range snaps {
				x[i] = s.CapturedAt.Sub(first.CapturedAt).Hours() / (24 * 30)
				y[i] = float64(s.RowCount)
			}
			slope := leastSquaresSlope(x, y)
			t.AvgMonthlyGrowthRows = roundTo(float64(latest.RowCount-first.RowCount)/span, 2)
			t.DataPoints = len(snaps)
			threshold := 0.1 * math.Abs(t.AvgMonthlyGrowthRows)
			if slope > threshold {
				t.Direction = DirectionIncreasing
			} else if slope < -threshold {
				t.Direction = DirectionDecreasing
			}
		}
	}

	t.indexOverhead = 1.0
	if latest.TableBytes > 0 {
		overhead := float64(latest.IndexBytes) / float64(latest.TableBytes)
		if overhead >= 0.1 {
			t.indexOverhead = overhead
		}
	}
	t.bloatFactor = 1.0
	if latest.BloatRatio > 0 {
		t.bloatFactor = latest.BloatRatio
	}
	return t
}

// FormatBytes renders a byte count in the nearest binary unit.
func FormatBytes(n int64) string {
	if n < 0 {
		return "0 B"
	}
	v := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f PB", v)
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
