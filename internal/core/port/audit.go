package port

import "context"

// AuditEntry records one check execution against one table.
type AuditEntry struct {
	Operation  string
	Table      string
	Check      string
	Findings   int
	DurationMS int64
	Err        error
}

// RunAuditor records audit events emitted during an analysis run.
type RunAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
