package quality

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// DatabaseTableName labels findings that apply to the database as a whole
// rather than any single table.
const DatabaseTableName = "(database)"

// TableReport holds the per-check findings for one table. Every check key is
// always present, nil when the check found nothing or was skipped.
type TableReport struct {
	Table        string                                `json:"table"`
	Schema       string                                `json:"schema"`
	RowCount     int64                                 `json:"row_count"`
	Checks       map[domain.CheckKind][]domain.Finding `json:"checks"`
	FindingCount int                                   `json:"finding_count"`
}

// QualitySummary rolls finding counts up across the whole run.
type QualitySummary struct {
	TablesAnalyzed int                      `json:"tables_analyzed"`
	TotalFindings  int                      `json:"total_findings"`
	BySeverity     map[domain.Severity]int  `json:"by_severity"`
	ByCheck        map[domain.CheckKind]int `json:"by_check"`
}

// ConnectionInfo identifies the assessed source with credentials stripped.
type ConnectionInfo struct {
	Host     string `json:"host,omitempty"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema"`
}

// ConnectionFromDSN extracts host and database name from a connection URL,
// dropping credentials and query parameters. A DSN that does not parse as a
// URL yields an empty ConnectionInfo.
func ConnectionFromDSN(dsn string) ConnectionInfo {
	u, err := url.Parse(dsn)
	if err != nil {
		return ConnectionInfo{}
	}
	return ConnectionInfo{
		Host:     u.Host,
		Database: strings.TrimPrefix(u.Path, "/"),
	}
}

// ReportMetadata describes the run that produced the report.
type ReportMetadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	TablesAnalyzed int       `json:"tables_analyzed"`
	TotalFindings  int       `json:"total_findings"`
}

// Report is the full output of a quality run over a schema.
type Report struct {
	Metadata       ReportMetadata   `json:"metadata"`
	Connection     ConnectionInfo   `json:"connection"`
	ServerTimezone string           `json:"server_timezone,omitempty"`
	Tables         []TableReport    `json:"tables"`
	Findings       []domain.Finding `json:"findings"`
	Summary        QualitySummary   `json:"data_quality_summary"`
}

// Aggregate assembles the final report from per-table check results. The flat
// Findings list is the union of every table's findings plus any database-wide
// rollups, and the summary counts are derived from that same list, so the
// by-check totals always sum to the total findings count.
func Aggregate(conn ConnectionInfo, serverTZ string, tables []port.TableFact, results []map[domain.CheckKind][]domain.Finding) Report {
	report := Report{
		Metadata: ReportMetadata{
			GeneratedAt:    time.Now().UTC(),
			TablesAnalyzed: len(tables),
		},
		Connection:     conn,
		ServerTimezone: serverTZ,
		Tables:         make([]TableReport, 0, len(tables)),
		Findings:       []domain.Finding{},
		Summary: QualitySummary{
			TablesAnalyzed: len(tables),
			BySeverity:     map[domain.Severity]int{},
			ByCheck:        map[domain.CheckKind]int{},
		},
	}

	tzByTable := map[string]domain.TimezoneEvidence{}

	for i := range tables {
		table := &tables[i]
		var checks map[domain.CheckKind][]domain.Finding
		if i < len(results) && results[i] != nil {
			checks = results[i]
		} else {
			checks = map[domain.CheckKind][]domain.Finding{}
		}
		for _, kind := range domain.AllCheckKinds() {
			if _, ok := checks[kind]; !ok {
				checks[kind] = nil
			}
		}

		tr := TableReport{
			Table:    table.Name,
			Schema:   table.Schema,
			RowCount: table.RowCount,
			Checks:   checks,
		}
		for _, kind := range domain.AllCheckKinds() {
			for _, f := range checks[kind] {
				tr.FindingCount++
				report.Findings = append(report.Findings, f)
				if kind == domain.CheckTimezone {
					if ev, ok := f.Evidence.(domain.TimezoneEvidence); ok {
						tzByTable[table.Name] = ev
					}
				}
			}
		}
		report.Tables = append(report.Tables, tr)
	}

	if rollup := databaseTimezoneRollup(serverTZ, tzByTable); rollup != nil {
		report.Findings = append(report.Findings, *rollup)
	}

	for _, f := range report.Findings {
		report.Summary.TotalFindings++
		report.Summary.BySeverity[f.Severity]++
		report.Summary.ByCheck[f.Check]++
	}
	report.Metadata.TotalFindings = report.Summary.TotalFindings
	return report
}

// databaseTimezoneRollup emits one database-wide warning when tables, each
// internally consistent or not, disagree on timezone handling across the
// schema as a whole.
func databaseTimezoneRollup(serverTZ string, byTable map[string]domain.TimezoneEvidence) *domain.Finding {
	if len(byTable) == 0 {
		return nil
	}

	distinct := map[string]bool{}
	var cols []domain.TimezoneColumn
	aware, naive := 0, 0
	for _, ev := range byTable {
		for _, k := range ev.DistinctTimezones {
			distinct[k] = true
		}
		cols = append(cols, ev.Columns...)
		aware += ev.AwareCount
		naive += ev.NaiveCount
	}
	if len(distinct) <= 1 {
		return nil
	}

	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tableNames := make([]string, 0, len(byTable))
	for name := range byTable {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	return &domain.Finding{
		Table:    DatabaseTableName,
		Check:    domain.CheckTimezone,
		Severity: domain.SeverityWarning,
		Detail: fmt.Sprintf(
			"Timezone handling is inconsistent across the database — %d distinct timezone(s) "+
				"in use across %d table(s): %s.",
			len(keys), len(byTable), strings.Join(keys, ", ")),
		Recommendation: "Pick one convention (timestamptz in UTC) and migrate toward it. " +
			"Cross-table time comparisons are unreliable until handling is uniform.",
		Evidence: domain.TimezoneEvidence{
			ServerTimezone:    serverTZ,
			Columns:           cols,
			DistinctTimezones: keys,
			AwareCount:        aware,
			NaiveCount:        naive,
		},
	}
}
