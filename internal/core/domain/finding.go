package domain

// CheckKind identifies one of the quality checks.
type CheckKind string

const (
	CheckControlledValueCandidate CheckKind = "controlled_value_candidate"
	CheckNullableButNeverNull     CheckKind = "nullable_but_never_null"
	CheckMissingPrimaryKey        CheckKind = "missing_primary_key"
	CheckMissingForeignKey        CheckKind = "missing_foreign_key"
	CheckFormatInconsistency      CheckKind = "format_inconsistency"
	CheckRangeViolation           CheckKind = "range_violation"
	CheckDeleteManagement         CheckKind = "delete_management"
	CheckLateArrivingData         CheckKind = "late_arriving_data"
	CheckTimezone                 CheckKind = "timezone"
)

// AllCheckKinds lists every check in execution order. The report keeps a key
// for each kind even when a check produced nothing, so output shape stays
// stable across sources with different capabilities.
func AllCheckKinds() []CheckKind {
	return []CheckKind{
		CheckControlledValueCandidate,
		CheckNullableButNeverNull,
		CheckMissingPrimaryKey,
		CheckMissingForeignKey,
		CheckFormatInconsistency,
		CheckRangeViolation,
		CheckDeleteManagement,
		CheckLateArrivingData,
		CheckTimezone,
	}
}

// Severity ranks a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Finding is one typed result emitted by a check. Findings are immutable
// after creation and are collected into the report by the aggregator.
type Finding struct {
	Table          string    `json:"table"`
	Column         string    `json:"column,omitempty"`
	Check          CheckKind `json:"check"`
	Severity       Severity  `json:"severity"`
	Detail         string    `json:"detail"`
	Recommendation string    `json:"recommendation"`
	Evidence       any       `json:"evidence,omitempty"`
}

// --- per-check evidence payloads ---

// ControlledValueEvidence carries the observed value set of a low-cardinality
// text column.
type ControlledValueEvidence struct {
	DistinctValues []string `json:"distinct_values"`
	Cardinality    int64    `json:"cardinality"`
}

// ForeignKeyEvidence carries the inferred FK target and, when the anti-join
// found unmatched values, the orphan count and a sample.
type ForeignKeyEvidence struct {
	TargetTable  string   `json:"target_table"`
	TargetColumn string   `json:"target_column"`
	OrphanCount  int64    `json:"orphan_count"`
	OrphanSample []string `json:"orphan_sample,omitempty"`
}

// FormatEvidence describes a dominant-but-not-universal value pattern.
type FormatEvidence struct {
	Pattern       string   `json:"pattern"`
	MatchRatio    float64  `json:"match_ratio"`
	Sampled       int      `json:"sampled"`
	NonConforming []string `json:"non_conforming_sample,omitempty"`
}

// RangeEvidence carries the out-of-domain value count for a pricing or
// quantity column.
type RangeEvidence struct {
	ViolationType string `json:"violation_type"`
	Min           string `json:"min"`
}

// DeleteStrategy classifies how a table handles row removal.
type DeleteStrategy string

const (
	DeleteSoft        DeleteStrategy = "soft_delete"
	DeleteHardWithCDC DeleteStrategy = "hard_delete_with_cdc"
	DeleteHard        DeleteStrategy = "hard_delete"
)

// DeleteManagementEvidence carries the delete-strategy classification.
type DeleteManagementEvidence struct {
	Strategy         DeleteStrategy `json:"delete_strategy"`
	SoftDeleteColumn string         `json:"soft_delete_column,omitempty"`
	SoftDeleteType   string         `json:"soft_delete_type,omitempty"`
	CDCEnabled       bool           `json:"cdc_enabled"`
	HasAuditTrail    bool           `json:"has_audit_trail"`
	AuditTrailTable  string         `json:"audit_trail_table,omitempty"`
}

// LagStats summarizes per-row arrival lag between a business-date column and
// a system-insertion timestamp, in hours.
type LagStats struct {
	RowsCompared int     `json:"rows_compared"`
	MinHours     float64 `json:"min_lag_hours"`
	AvgHours     float64 `json:"avg_lag_hours"`
	P95Hours     float64 `json:"p95_lag_hours"`
	MaxHours     float64 `json:"max_lag_hours"`
	LateOver1d   int     `json:"rows_late_over_1d"`
	LateOver7d   int     `json:"rows_late_over_7d"`
}

// LateArrivalEvidence carries lag statistics and the watermark recommendation.
type LateArrivalEvidence struct {
	BusinessDateColumn string    `json:"business_date_column"`
	SystemTsColumn     string    `json:"system_ts_column,omitempty"`
	Lag                *LagStats `json:"lag_stats,omitempty"`
	LookbackDays       int       `json:"recommended_lookback_days,omitempty"`
	WatermarkColumn    string    `json:"watermark_column,omitempty"`
}

// TimezoneColumn is one date/time column with its effective timezone.
type TimezoneColumn struct {
	Column            string `json:"column"`
	DataType          string `json:"type"`
	EffectiveTimezone string `json:"effective_timezone"`
	TZAware           bool   `json:"is_tz_aware"`
}

// TimezoneEvidence aggregates effective timezones for one table (or for the
// whole database in the rollup finding).
type TimezoneEvidence struct {
	ServerTimezone    string           `json:"server_timezone"`
	Columns           []TimezoneColumn `json:"columns,omitempty"`
	DistinctTimezones []string         `json:"distinct_timezones"`
	AwareCount        int              `json:"tz_aware_count"`
	NaiveCount        int              `json:"tz_naive_count"`
}
