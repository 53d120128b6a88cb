package quality

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkLateArrival measures how far behind the business event rows actually
// land, per table. It needs both a business-date column (order_date, ...) and
// a system-insertion timestamp (created_at, ...); tables without the pair
// emit nothing, or a brief note when only the business date exists.
//
// The recommended lookback window is the smallest whole-day window covering
// the P95 lag, never less than one day. The system-insertion column is the
// safer incremental watermark whenever lag is non-trivial.
func (e *Engine) checkLateArrival(ctx context.Context, table *port.TableFact) []domain.Finding {
	if table.RowCount == 0 {
		return nil
	}

	bizCol := e.matchColumn(table, e.rules.BusinessDateColumns, e.rules.FutureDateColumns)
	if bizCol == nil {
		return nil
	}

	sysCol := e.matchColumn(table, e.rules.SystemTsColumns, nil)
	if sysCol == nil {
		return []domain.Finding{{
			Table:    table.Name,
			Column:   bizCol.Name,
			Check:    domain.CheckLateArrivingData,
			Severity: domain.SeverityInfo,
			Detail: fmt.Sprintf(
				"Table has business-date column '%s' but no system-insertion timestamp "+
					"(created_at, etc.). Cannot measure arrival lag.", bizCol.Name),
			Recommendation: "Add a created_at / inserted_at column to track when rows " +
				"actually land. Without it, late-arriving data cannot be detected or measured.",
			Evidence: domain.LateArrivalEvidence{
				BusinessDateColumn: bizCol.Name,
			},
		}}
	}

	rows := e.sampleTable(ctx, table, []string{bizCol.Name, sysCol.Name})

	var lags []float64
	for _, row := range rows {
		biz, okB := asTime(row[bizCol.Name])
		sys, okS := asTime(row[sysCol.Name])
		if !okB || !okS {
			continue
		}
		lag := sys.Sub(biz).Hours()
		if lag < 0 {
			continue
		}
		lags = append(lags, lag)
	}
	if len(lags) == 0 {
		return nil
	}

	stats := computeLagStats(lags, e.thresholds.LateLagHours, e.thresholds.VeryLateLagHours)
	lookbackDays := int(math.Ceil(stats.P95Hours / 24))
	if lookbackDays < 1 {
		lookbackDays = 1
	}

	severity := domain.SeverityInfo
	var detail, recommendation string
	switch {
	case stats.MaxHours <= 1:
		detail = fmt.Sprintf(
			"Data arrives promptly — max lag between '%s' and '%s' is %.1fh (avg %.1fh). "+
				"Standard watermarking on '%s' is safe.",
			bizCol.Name, sysCol.Name, stats.MaxHours, stats.AvgHours, sysCol.Name)
		recommendation = fmt.Sprintf(
			"Use '%s' as the incremental watermark. No special lookback window needed.",
			sysCol.Name)
	case stats.MaxHours <= e.thresholds.LateLagHours:
		detail = fmt.Sprintf(
			"Minor arrival delay — max lag between '%s' and '%s' is %.1fh (avg %.1fh, P95 %.1fh).",
			bizCol.Name, sysCol.Name, stats.MaxHours, stats.AvgHours, stats.P95Hours)
		recommendation = fmt.Sprintf(
			"Use '%s' as the watermark (preferred). If using '%s', add a %d-day lookback buffer.",
			sysCol.Name, bizCol.Name, lookbackDays)
	default:
		severity = domain.SeverityWarning
		detail = fmt.Sprintf(
			"Late-arriving data detected — max lag between '%s' and '%s' is %.1f day(s) "+
				"(avg %.1fh, P95 %.1fh). %d of %d row(s) arrived >24h late.",
			bizCol.Name, sysCol.Name, stats.MaxHours/24, stats.AvgHours, stats.P95Hours,
			stats.LateOver1d, stats.RowsCompared)
		recommendation = fmt.Sprintf(
			"Do NOT use '%s' as the incremental watermark. Use '%s' instead, or add a "+
				"lookback window of at least %d day(s) to catch late arrivals.",
			bizCol.Name, sysCol.Name, lookbackDays)
	}

	return []domain.Finding{{
		Table:          table.Name,
		Column:         bizCol.Name,
		Check:          domain.CheckLateArrivingData,
		Severity:       severity,
		Detail:         detail,
		Recommendation: recommendation,
		Evidence: domain.LateArrivalEvidence{
			BusinessDateColumn: bizCol.Name,
			SystemTsColumn:     sysCol.Name,
			Lag:                &stats,
			LookbackDays:       lookbackDays,
			WatermarkColumn:    sysCol.Name,
		},
	}}
}

// matchColumn returns the first column whose lowercase name is in patterns
// and not in exclusions.
func (e *Engine) matchColumn(table *port.TableFact, patterns, exclusions []string) *port.ColumnFact {
	excluded := make(map[string]bool, len(exclusions))
	for _, x := range exclusions {
		excluded[x] = true
	}
	for _, p := range patterns {
		for i := range table.Columns {
			name := strings.ToLower(table.Columns[i].Name)
			if name == p && !excluded[name] {
				return &table.Columns[i]
			}
		}
	}
	return nil
}

func computeLagStats(lags []float64, lateHours, veryLateHours float64) domain.LagStats {
	sorted := append([]float64(nil), lags...)
	sort.Float64s(sorted)

	sum := 0.0
	late1d, late7d := 0, 0
	for _, l := range sorted {
		sum += l
		if l > lateHours {
			late1d++
		}
		if l > veryLateHours {
			late7d++
		}
	}

	return domain.LagStats{
		RowsCompared: len(sorted),
		MinHours:     roundTo(sorted[0], 2),
		AvgHours:     roundTo(sum/float64(len(sorted)), 2),
		P95Hours:     roundTo(percentile(sorted, 0.95), 2),
		MaxHours:     roundTo(sorted[len(sorted)-1], 2),
		LateOver1d:   late1d,
		LateOver7d:   late7d,
	}
}

// percentile computes the p-th percentile of an ascending-sorted slice with
// linear interpolation between order statistics, matching the continuous
// percentile used by the database's percentile_cont.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
