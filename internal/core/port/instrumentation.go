package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordCheckDuration(ctx context.Context, check string, ms float64)
	IncrementFindings(ctx context.Context, n int64)
	IncrementCheckErrors(ctx context.Context)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordCheckDuration(context.Context, string, float64) {}
func (NoopInstrumentation) IncrementFindings(context.Context, int64)             {}
func (NoopInstrumentation) IncrementCheckErrors(context.Context)                 {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)          {}
