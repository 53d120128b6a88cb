package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkTimezone classifies every timestamp column as timezone-aware or naive
// and flags tables that mix the two, or mix distinct zones. Naive columns
// inherit the server timezone but are tracked apart from aware columns even
// when the server runs UTC, since the two behave differently once the server
// setting changes.
func (e *Engine) checkTimezone(_ context.Context, table *port.TableFact) []domain.Finding {
	var tzCols []domain.TimezoneColumn
	distinct := make(map[string]bool)
	awareCount, naiveCount := 0, 0

	for i := range table.Columns {
		col := &table.Columns[i]
		zone, aware, ok := domain.EffectiveTimezone(col.DataType, e.serverTZ)
		if !ok {
			continue
		}
		if col.DetectedTimezone != "" {
			zone = col.DetectedTimezone
		}
		if aware {
			awareCount++
		} else {
			naiveCount++
		}
		key := domain.TimezoneKey(zone, aware)
		distinct[key] = true
		tzCols = append(tzCols, domain.TimezoneColumn{
			Column:            col.Name,
			DataType:          col.DataType,
			EffectiveTimezone: key,
			TZAware:           aware,
		})
	}
	if len(tzCols) == 0 {
		return nil
	}

	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	evidence := domain.TimezoneEvidence{
		ServerTimezone:    e.serverTZ,
		Columns:           tzCols,
		DistinctTimezones: keys,
		AwareCount:        awareCount,
		NaiveCount:        naiveCount,
	}

	if len(keys) > 1 {
		return []domain.Finding{{
			Table:    table.Name,
			Check:    domain.CheckTimezone,
			Severity: domain.SeverityWarning,
			Detail: fmt.Sprintf(
				"Mixed timezone handling — %d timestamp column(s) span %d distinct timezone(s): %s. "+
					"%d aware, %d naive (naive columns follow the server timezone '%s').",
				len(tzCols), len(keys), strings.Join(keys, ", "),
				awareCount, naiveCount, e.serverTZ),
			Recommendation: "Normalize all timestamps to a single timezone (UTC, using " +
				"timestamptz) at the source, or convert explicitly during extraction. Mixed " +
				"timezones silently corrupt time-based joins and incremental loads.",
			Evidence: evidence,
		}}
	}

	var detail string
	if naiveCount > 0 && awareCount == 0 {
		detail = fmt.Sprintf(
			"All %d timestamp column(s) are timezone-naive and follow the server timezone '%s'. "+
				"Values will shift if the server setting changes.",
			len(tzCols), e.serverTZ)
	} else {
		detail = fmt.Sprintf(
			"All %d timestamp column(s) are timezone-aware (%s). Consistent handling.",
			len(tzCols), keys[0])
	}

	return []domain.Finding{{
		Table:    table.Name,
		Check:    domain.CheckTimezone,
		Severity: domain.SeverityInfo,
		Detail:   detail,
		Recommendation: "Document the timezone convention so downstream consumers convert " +
			"correctly.",
		Evidence: evidence,
	}}
}
