package quality

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkFormatInconsistency samples text columns and classifies each value
// against the format detectors. A pattern that covers a plurality of the
// sampled values but not all of them means the column mixes formats.
//
// Low-cardinality columns are skipped: a 5-value status column with one odd
// value is a controlled-value problem, not a format one.
func (e *Engine) checkFormatInconsistency(ctx context.Context, table *port.TableFact) []domain.Finding {
	if table.RowCount == 0 {
		return nil
	}

	var findings []domain.Finding
	for _, col := range table.Columns {
		if !domain.IsTextType(col.DataType) {
			continue
		}
		if col.Cardinality <= e.thresholds.ControlledValueMaxCardinality {
			continue
		}

		rows := e.sampleTable(ctx, table, []string{col.Name})
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			if v, ok := row[col.Name]; ok && v != nil {
				values = append(values, stringify(v))
			}
		}
		if len(values) == 0 {
			continue
		}

		for _, det := range domain.FormatDetectors() {
			matches := 0
			for _, v := range values {
				if det.Pattern.MatchString(v) {
					matches++
				}
			}
			ratio := float64(matches) / float64(len(values))
			if ratio <= e.thresholds.FormatPluralityRatio || ratio >= 1.0 {
				continue
			}

			var nonConforming []string
			for _, v := range values {
				if len(nonConforming) == 5 {
					break
				}
				if !det.Pattern.MatchString(v) {
					nonConforming = append(nonConforming, v)
				}
			}

			findings = append(findings, domain.Finding{
				Table:    table.Name,
				Column:   col.Name,
				Check:    domain.CheckFormatInconsistency,
				Severity: domain.SeverityWarning,
				Detail: fmt.Sprintf(
					"%d/%d sampled values match %s format, but %d do not. Non-matching samples: %v",
					matches, len(values), det.Name, len(values)-matches, nonConforming,
				),
				Recommendation: fmt.Sprintf(
					"Add validation to ensure consistent %s format, or separate non-conforming values",
					det.Name,
				),
				Evidence: domain.FormatEvidence{
					Pattern:       det.Name,
					MatchRatio:    roundTo(ratio, 3),
					Sampled:       len(values),
					NonConforming: nonConforming,
				},
			})
		}
	}
	return findings
}

// checkRangeViolations reports negative values in pricing and quantity
// columns, using the aggregate min collected with the column facts.
func (e *Engine) checkRangeViolations(_ context.Context, table *port.TableFact) []domain.Finding {
	if table.RowCount == 0 {
		return nil
	}

	var findings []domain.Finding
	for _, col := range table.Columns {
		if col.Min == "" || !domain.IsNumericType(col.DataType) {
			continue
		}
		minVal, err := strconv.ParseFloat(col.Min, 64)
		if err != nil || minVal >= 0 {
			continue
		}

		switch {
		case e.rules.IsPricing(col.Name):
			findings = append(findings, domain.Finding{
				Table:    table.Name,
				Column:   col.Name,
				Check:    domain.CheckRangeViolation,
				Severity: domain.SeverityWarning,
				Detail: fmt.Sprintf("Pricing/amount column has negative value(s) (min: %s)",
					col.Min),
				Recommendation: "Add CHECK constraint (value >= 0) or verify negatives " +
					"represent valid adjustments (refunds, credits)",
				Evidence: domain.RangeEvidence{
					ViolationType: "negative_pricing",
					Min:           col.Min,
				},
			})
		case e.rules.IsQuantity(col.Name):
			findings = append(findings, domain.Finding{
				Table:    table.Name,
				Column:   col.Name,
				Check:    domain.CheckRangeViolation,
				Severity: domain.SeverityWarning,
				Detail: fmt.Sprintf("Quantity column has negative value(s) (min: %s)",
					col.Min),
				Recommendation: "Add CHECK constraint (value >= 0) if negative " +
					"quantities are not expected",
				Evidence: domain.RangeEvidence{
					ViolationType: "negative_quantity",
					Min:           col.Min,
				},
			})
		}
	}
	return findings
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}
