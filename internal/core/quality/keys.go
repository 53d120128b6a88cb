package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkNullableNeverNull reports nullable columns that contain zero NULLs
// across a non-empty table. A NOT NULL constraint would document the de facto
// contract.
func (e *Engine) checkNullableNeverNull(_ context.Context, table *port.TableFact) []domain.Finding {
	if table.RowCount == 0 {
		return nil
	}

	var findings []domain.Finding
	for _, col := range table.Columns {
		if !col.Nullable || col.NullCount != 0 {
			continue
		}
		findings = append(findings, domain.Finding{
			Table:    table.Name,
			Column:   col.Name,
			Check:    domain.CheckNullableButNeverNull,
			Severity: domain.SeverityInfo,
			Detail: fmt.Sprintf("Column is nullable but has 0 NULLs across %d row(s)",
				table.RowCount),
			Recommendation: "Consider adding a NOT NULL constraint if the column " +
				"should always have a value",
		})
	}
	return findings
}

// checkMissingPrimaryKey emits exactly one critical finding for a table
// without a primary key.
func (e *Engine) checkMissingPrimaryKey(_ context.Context, table *port.TableFact) []domain.Finding {
	if len(table.PrimaryKeys) > 0 {
		return nil
	}
	return []domain.Finding{{
		Table:    table.Name,
		Check:    domain.CheckMissingPrimaryKey,
		Severity: domain.SeverityCritical,
		Detail:   "Table has no primary key defined",
		Recommendation: "Add a primary key to ensure row uniqueness " +
			"and enable efficient lookups",
	}}
}

// checkMissingForeignKeys finds columns that follow an FK naming pattern but
// carry no FK constraint, resolving the likely target through the catalog's
// primary keys. When orphan detection is available the anti-join runs, and an
// orphan count above zero escalates the finding to critical.
func (e *Engine) checkMissingForeignKeys(ctx context.Context, table *port.TableFact) []domain.Finding {
	pkSet := make(map[string]bool, len(table.PrimaryKeys))
	for _, pk := range table.PrimaryKeys {
		pkSet[pk] = true
	}

	var findings []domain.Finding
	for _, col := range table.Columns {
		if pkSet[col.Name] || table.HasDeclaredFK(col.Name) {
			continue
		}

		suffix, ok := e.rules.MatchJoinSuffix(col.Name)
		if !ok {
			continue
		}

		targetTable, targetColumn, ok := e.rules.ResolveFKTarget(table.Name, col.Name, suffix, e.allPKs)
		if !ok {
			continue
		}

		severity := domain.SeverityWarning
		detail := fmt.Sprintf(
			"Column follows FK naming pattern and matches %s.%s but has no FK constraint",
			targetTable, targetColumn,
		)
		evidence := domain.ForeignKeyEvidence{
			TargetTable:  targetTable,
			TargetColumn: targetColumn,
		}

		if e.caps.OrphanDetection && table.RowCount > 0 {
			ref := port.TableRef{Schema: table.Schema, Name: table.Name}
			count, sample, err := e.sampler.CountOrphans(ctx, ref, col.Name, targetTable, targetColumn)
			if err == nil && count > 0 {
				severity = domain.SeverityCritical
				evidence.OrphanCount = count
				evidence.OrphanSample = sample
				detail += fmt.Sprintf(". Found %d orphaned value(s): %s",
					count, strings.Join(sample, ", "))
			}
		}

		findings = append(findings, domain.Finding{
			Table:    table.Name,
			Column:   col.Name,
			Check:    domain.CheckMissingForeignKey,
			Severity: severity,
			Detail:   detail,
			Recommendation: fmt.Sprintf(
				"Add FOREIGN KEY constraint referencing %s(%s) to enforce referential integrity",
				targetTable, targetColumn,
			),
			Evidence: evidence,
		})
	}
	return findings
}
