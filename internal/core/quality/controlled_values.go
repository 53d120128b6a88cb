package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkControlledValues flags text columns whose small, stable value set
// suggests a controlled value list, but which carry no CHECK, ENUM, FK, or
// UNIQUE constraint. Free-form column names are skipped before cardinality is
// considered: a `status`-like name on the skip list wins over the threshold.
func (e *Engine) checkControlledValues(ctx context.Context, table *port.TableFact) []domain.Finding {
	if table.RowCount == 0 {
		return nil
	}

	var findings []domain.Finding
	for _, col := range table.Columns {
		if !domain.IsTextType(col.DataType) {
			continue
		}
		if col.Cardinality == 0 || col.Cardinality > e.thresholds.ControlledValueMaxCardinality {
			continue
		}
		if col.IsPrimaryKey || col.IsUnique || col.HasCheck || col.IsEnum || table.HasDeclaredFK(col.Name) {
			continue
		}
		if e.rules.IsFreeform(col.Name) {
			continue
		}

		values := e.distinctValues(ctx, table, col.Name)

		display := make([]string, 0, 10)
		for i, v := range values {
			if i == 10 {
				break
			}
			display = append(display, fmt.Sprintf("%q", v))
		}

		findings = append(findings, domain.Finding{
			Table:    table.Name,
			Column:   col.Name,
			Check:    domain.CheckControlledValueCandidate,
			Severity: domain.SeverityWarning,
			Detail: fmt.Sprintf(
				"Text column with %d distinct value(s) (%s) but no CHECK, ENUM, or FK constraint",
				col.Cardinality, strings.Join(display, ", "),
			),
			Recommendation: "Add a CHECK constraint, convert to an ENUM type, " +
				"or create a lookup/reference table to prevent invalid values",
			Evidence: domain.ControlledValueEvidence{
				DistinctValues: values,
				Cardinality:    col.Cardinality,
			},
		})
	}
	return findings
}

// distinctValues fetches the column's value set, sorted. Sampler failures
// degrade to an empty list; the finding still carries the cardinality.
func (e *Engine) distinctValues(ctx context.Context, table *port.TableFact, column string) []string {
	ref := port.TableRef{Schema: table.Schema, Name: table.Name}
	sample, err := e.sampler.ColumnStats(ctx, ref, column)
	if err != nil {
		return nil
	}
	values := append([]string(nil), sample.DistinctValues...)
	sort.Strings(values)
	return values
}
