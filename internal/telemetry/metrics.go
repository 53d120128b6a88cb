package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/sourcegauge/sourcegauge"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	CheckDuration metric.Float64Histogram
	Findings      metric.Int64Counter
	CheckErrors   metric.Int64Counter
	ToolDuration  metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	checkDuration, _ := meter.Float64Histogram("sourcegauge.check.duration",
		metric.WithDescription("Quality check execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	findings, _ := meter.Int64Counter("sourcegauge.findings.count",
		metric.WithDescription("Total number of quality findings produced"),
	)
	checkErrors, _ := meter.Int64Counter("sourcegauge.check.errors",
		metric.WithDescription("Total number of quality checks that failed"),
	)
	toolDuration, _ := meter.Float64Histogram("sourcegauge.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		CheckDuration: checkDuration,
		Findings:      findings,
		CheckErrors:   checkErrors,
		ToolDuration:  toolDuration,
	}
}

func (i *Instruments) RecordCheckDuration(ctx context.Context, check string, ms float64) {
	i.CheckDuration.Record(ctx, ms,
		metric.WithAttributes(attribute.String("check", check)),
	)
}

func (i *Instruments) IncrementFindings(ctx context.Context, n int64) {
	if n > 0 {
		i.Findings.Add(ctx, n)
	}
}

func (i *Instruments) IncrementCheckErrors(ctx context.Context) {
	i.CheckErrors.Add(ctx, 1)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
