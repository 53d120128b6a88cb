package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkDeleteManagement classifies each table's delete strategy into exactly
// one of soft_delete, hard_delete_with_cdc, or hard_delete, and flags
// audit-trail companion tables. Only plain hard deletes warrant a warning:
// they are invisible to incremental ingestion.
func (e *Engine) checkDeleteManagement(_ context.Context, table *port.TableFact) []domain.Finding {
	softCol, softType := e.softDeleteColumn(table)

	cdcEnabled := e.caps.CDCIntrospection && table.CDCEnabled
	auditTable, hasAudit := e.rules.AuditTrailTable(table.Name, e.tableNames)

	var (
		strategy       domain.DeleteStrategy
		severity       domain.Severity
		detail         string
		recommendation string
	)

	switch {
	case softCol != "":
		strategy = domain.DeleteSoft
		severity = domain.SeverityInfo

		switch softType {
		case "active_flag":
			detail = fmt.Sprintf(
				"Active-flag column '%s' (boolean) detected — rows with %s=false are logically deleted.",
				softCol, softCol)
			recommendation = fmt.Sprintf(
				"Filter on %q = true for current records during ingestion. "+
					"Ingest all rows if you need deletion history downstream.", softCol)
		case "timestamp":
			detail = fmt.Sprintf(
				"Soft-delete column '%s' (timestamp) detected — deleted rows are preserved with a deletion timestamp.",
				softCol)
			recommendation = fmt.Sprintf(
				"Use %q IS NULL for active records. This column can also serve "+
					"as a watermark for incremental delete detection.", softCol)
		default:
			detail = fmt.Sprintf(
				"Soft-delete column '%s' (boolean) detected — deleted rows are flagged in the source table.",
				softCol)
			recommendation = fmt.Sprintf(
				"Filter on %q = false for active records, or ingest all rows for full history.", softCol)
		}

	case cdcEnabled:
		strategy = domain.DeleteHardWithCDC
		severity = domain.SeverityInfo
		detail = "No soft-delete column found, but CDC is enabled (REPLICA IDENTITY " +
			"FULL or INDEX). Hard deletes can be captured via change data capture."
		recommendation = "Use CDC (e.g. Debezium, pgoutput) to capture DELETE events. " +
			"This avoids periodic full loads to detect removed rows."

	default:
		strategy = domain.DeleteHard
		severity = domain.SeverityWarning
		detail = "No soft-delete column detected and CDC is not enabled. Table likely " +
			"uses hard deletes that are invisible to incremental ingestion."
		recommendation = "Consider one of: (1) Add a soft-delete column (e.g. deleted_at " +
			"TIMESTAMPTZ), (2) Enable CDC via ALTER TABLE ... REPLICA IDENTITY FULL, or " +
			"(3) Plan periodic full-load syncs to detect deletions."
	}

	if hasAudit {
		detail += fmt.Sprintf(" Audit-trail table '%s' exists.", auditTable)
	}

	return []domain.Finding{{
		Table:          table.Name,
		Column:         softCol,
		Check:          domain.CheckDeleteManagement,
		Severity:       severity,
		Detail:         detail,
		Recommendation: recommendation,
		Evidence: domain.DeleteManagementEvidence{
			Strategy:         strategy,
			SoftDeleteColumn: softCol,
			SoftDeleteType:   softType,
			CDCEnabled:       cdcEnabled,
			HasAuditTrail:    hasAudit,
			AuditTrailTable:  auditTable,
		},
	}}
}

// softDeleteColumn finds the first soft-delete or active-flag column. Active
// flags only count when the column is actually boolean; an "active" text
// status column is not a delete marker.
func (e *Engine) softDeleteColumn(table *port.TableFact) (name, kind string) {
	for _, col := range table.Columns {
		cn := strings.ToLower(col.Name)
		ct := strings.ToLower(col.DataType)

		for _, p := range e.rules.SoftDeleteTimestamps {
			if cn == p {
				return col.Name, "timestamp"
			}
		}
		for _, p := range e.rules.SoftDeleteBooleans {
			if cn == p {
				return col.Name, "boolean"
			}
		}
		for _, p := range e.rules.ActiveFlags {
			if cn == p && strings.Contains(ct, "bool") {
				return col.Name, "active_flag"
			}
		}
	}
	return "", ""
}
