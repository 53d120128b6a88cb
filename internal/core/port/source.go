package port

import "context"

// ColumnFact holds structural and statistical facts about one column,
// produced once per analysis run. Checks treat it as immutable input.
type ColumnFact struct {
	Name        string `json:"name"`
	DataType    string `json:"type"`
	Nullable    bool   `json:"nullable"`
	Cardinality int64  `json:"cardinality"`
	NullCount   int64  `json:"null_count"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`

	// Constraint membership, from source introspection.
	IsPrimaryKey bool `json:"is_primary_key,omitempty"`
	IsUnique     bool `json:"is_unique,omitempty"`
	HasCheck     bool `json:"has_check,omitempty"`
	IsEnum       bool `json:"is_enum,omitempty"`

	// DetectedTimezone overrides type-based timezone classification when the
	// source supplied one ("" means not detected).
	DetectedTimezone string `json:"detected_timezone,omitempty"`
}

// ForeignKey is one declared FK column with its target.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// TableFact is the normalized table model the quality engine runs over. The
// orchestrator owns it for the duration of one run.
type TableFact struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	RowCount    int64        `json:"row_count"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
	Columns     []ColumnFact `json:"columns"`

	// CDCEnabled reports change-data-capture readiness (replica identity
	// FULL or USING INDEX on PostgreSQL).
	CDCEnabled bool `json:"cdc_enabled"`
}

// Column returns the named column fact, or nil.
func (t *TableFact) Column(name string) *ColumnFact {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasDeclaredFK reports whether the column already carries an FK constraint.
func (t *TableFact) HasDeclaredFK(column string) bool {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return true
		}
	}
	return false
}

// MetadataProvider yields normalized table facts for a schema, excluding
// sampled statistics that require reading table data.
type MetadataProvider interface {
	Tables(ctx context.Context, schema string) ([]TableFact, error)
}

// ColumnSample holds sampled statistics for one column.
type ColumnSample struct {
	Cardinality    int64
	NullCount      int64
	DistinctValues []string // top-K, sorted
	Min            string
	Max            string
}

// StatsSampler is the live query capability injected into checks that need to
// read table data. Checks depending on it stay independently testable with
// fixture implementations, and the scoped sampler is released at the end of
// the run rather than held as shared mutable state.
type StatsSampler interface {
	// ColumnStats fetches cardinality, null count, top-K distinct values and
	// min/max for one column.
	ColumnStats(ctx context.Context, table TableRef, column string) (ColumnSample, error)

	// SampleRows reads up to limit rows of the named columns, skipping rows
	// where all requested columns are NULL.
	SampleRows(ctx context.Context, table TableRef, columns []string, limit int) ([]map[string]any, error)

	// CountOrphans runs an anti-join: values of table.column with no match in
	// refTable.refColumn. It returns the count and a small value sample.
	CountOrphans(ctx context.Context, table TableRef, column, refTable, refColumn string) (int64, []string, error)

	// ServerTimezone returns the source's configured timezone, or
	// domain.UnknownTimezone if it cannot be determined.
	ServerTimezone(ctx context.Context) string
}

// TableRef names a table within a schema.
type TableRef struct {
	Schema string
	Name   string
}

// Capabilities describes what a source dialect supports. The orchestrator
// consults it before invoking a check, instead of scattering dialect branches
// through check bodies. A missing capability degrades the dependent check to
// an empty result with its key preserved.
type Capabilities struct {
	OrphanDetection         bool
	CDCIntrospection        bool
	ConstraintIntrospection bool
	RowSampling             bool
	ServerTimezone          bool
}

// FullCapabilities is what the PostgreSQL adapter provides.
func FullCapabilities() Capabilities {
	return Capabilities{
		OrphanDetection:         true,
		CDCIntrospection:        true,
		ConstraintIntrospection: true,
		RowSampling:             true,
		ServerTimezone:          true,
	}
}
