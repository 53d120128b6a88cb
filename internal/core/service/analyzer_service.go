package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
	"github.com/sourcegauge/sourcegauge/internal/core/quality"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// AnalyzerService orchestrates metadata introspection and the quality engine.
type AnalyzerService struct {
	metadata port.MetadataProvider
	engine   *quality.Engine
	auditor  port.RunAuditor
	conn     quality.ConnectionInfo
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewAnalyzerService(metadata port.MetadataProvider, engine *quality.Engine, auditor port.RunAuditor, conn quality.ConnectionInfo, logger *slog.Logger, tracer trace.Tracer) *AnalyzerService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &AnalyzerService{
		metadata: metadata,
		engine:   engine,
		auditor:  auditor,
		conn:     conn,
		logger:   logger,
		tracer:   tracer,
	}
}

// ListTables returns the table facts for a schema without running any checks.
func (s *AnalyzerService) ListTables(ctx context.Context, schema string) ([]port.TableFact, error) {
	ctx, span := s.tracer.Start(ctx, "AnalyzerService.ListTables",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.namespace", schema),
		),
	)
	defer span.End()

	tables, err := s.metadata.Tables(ctx, schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list tables: %w", err)
	}
	span.SetAttributes(attribute.Int("db.response.tables", len(tables)))
	return tables, nil
}

// Analyze runs every quality check over every table in the schema and returns
// the aggregated report. Metadata access is the only fatal failure mode;
// individual checks degrade to empty results inside the engine.
func (s *AnalyzerService) Analyze(ctx context.Context, schema string) (quality.Report, error) {
	ctx, span := s.tracer.Start(ctx, "AnalyzerService.Analyze",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.namespace", schema),
		),
	)
	defer span.End()

	start := time.Now()

	tables, err := s.metadata.Tables(ctx, schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return quality.Report{}, fmt.Errorf("list tables: %w", err)
	}

	s.engine.BeginRun(ctx, tables)

	runResults := make([]map[domain.CheckKind][]domain.Finding, 0, len(tables))
	for i := range tables {
		runResults = append(runResults, s.engine.RunChecks(ctx, &tables[i]))
	}

	conn := s.conn
	conn.Schema = schema
	report := quality.Aggregate(conn, s.engine.ServerTimezone(), tables, runResults)

	durationMS := time.Since(start).Milliseconds()
	if s.auditor != nil {
		s.auditor.Record(ctx, port.AuditEntry{
			Operation:  firstNonEmpty(toolNameFromCtx(ctx), "analyze"),
			Findings:   report.Summary.TotalFindings,
			DurationMS: durationMS,
		})
	}

	s.logger.InfoContext(ctx, "quality analysis complete",
		slog.String("schema", schema),
		slog.Int("tables", len(tables)),
		slog.Int("findings", report.Summary.TotalFindings),
		slog.Int64("duration_ms", durationMS),
	)
	span.SetAttributes(
		attribute.Int("quality.tables", len(tables)),
		attribute.Int("quality.findings", report.Summary.TotalFindings),
	)
	return report, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
