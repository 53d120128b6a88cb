package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/forecast"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// growthLookback bounds how far back the creation-timestamp growth scan goes.
const growthLookback = 730 * 24 * time.Hour // ~2 years

// CollectResult reports what one collection run gathered.
type CollectResult struct {
	RunID          int64 `json:"run_id"`
	TablesAnalyzed int   `json:"tables_analyzed"`
	SnapshotErrors int   `json:"snapshot_errors"`
}

// ForecastReport is the output of a projection run.
type ForecastReport struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Schema      string                     `json:"schema"`
	Tables      []forecast.TableProjection `json:"tables"`
	Database    forecast.DatabaseForecast  `json:"database"`
}

// ForecastService coordinates snapshot collection and capacity projection.
// Collection appends to the store and never mutates prior runs; projection
// reads the accumulated series and is free of side effects.
type ForecastService struct {
	metadata  port.MetadataProvider
	collector port.SnapshotCollector
	store     port.SnapshotStore
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewForecastService(metadata port.MetadataProvider, collector port.SnapshotCollector, store port.SnapshotStore, logger *slog.Logger, tracer trace.Tracer) *ForecastService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &ForecastService{
		metadata:  metadata,
		collector: collector,
		store:     store,
		logger:    logger,
		tracer:    tracer,
	}
}

// Collect snapshots every table in the schema into the store. A table that
// fails to measure is logged and skipped; the run still succeeds as long as
// the store itself stays reachable.
func (s *ForecastService) Collect(ctx context.Context, schema string) (CollectResult, error) {
	ctx, span := s.tracer.Start(ctx, "ForecastService.Collect",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.namespace", schema),
		),
	)
	defer span.End()

	if err := s.store.Setup(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CollectResult{}, fmt.Errorf("snapshot store setup: %w", err)
	}

	runID, err := s.store.BeginRun(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CollectResult{}, fmt.Errorf("begin collection run: %w", err)
	}

	tables, err := s.metadata.Tables(ctx, schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if finishErr := s.store.FinishRun(ctx, runID, 0, port.RunFailed); finishErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark run failed",
				slog.Int64("run_id", runID),
				slog.String("error", finishErr.Error()),
			)
		}
		return CollectResult{RunID: runID}, fmt.Errorf("list tables: %w", err)
	}

	cutoff := time.Now().UTC().Add(-growthLookback)
	result := CollectResult{RunID: runID}

	for _, t := range tables {
		ref := port.TableRef{Schema: t.Schema, Name: t.Name}

		snap, err := s.collector.CollectSnapshot(ctx, ref)
		if err != nil {
			result.SnapshotErrors++
			s.logger.WarnContext(ctx, "snapshot collection failed",
				slog.String("table", t.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.store.Append(ctx, runID, snap); err != nil {
			result.SnapshotErrors++
			s.logger.WarnContext(ctx, "snapshot append failed",
				slog.String("table", t.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		points, err := s.collector.CollectGrowth(ctx, ref, cutoff)
		if err != nil {
			s.logger.WarnContext(ctx, "growth history unavailable",
				slog.String("table", t.Name),
				slog.String("error", err.Error()),
			)
		}
		for _, p := range points {
			if err := s.store.AppendGrowth(ctx, runID, p); err != nil {
				s.logger.WarnContext(ctx, "growth append failed",
					slog.String("table", t.Name),
					slog.String("error", err.Error()),
				)
				break
			}
		}

		result.TablesAnalyzed++
	}

	if dbSnap, err := s.collector.CollectDatabase(ctx); err != nil {
		s.logger.WarnContext(ctx, "database snapshot failed",
			slog.String("error", err.Error()),
		)
	} else if err := s.store.AppendDatabase(ctx, runID, dbSnap); err != nil {
		s.logger.WarnContext(ctx, "database snapshot append failed",
			slog.String("error", err.Error()),
		)
	}

	if err := s.store.FinishRun(ctx, runID, result.TablesAnalyzed, port.RunSuccess); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("finish collection run: %w", err)
	}

	s.logger.InfoContext(ctx, "snapshot collection complete",
		slog.Int64("run_id", runID),
		slog.Int("tables", result.TablesAnalyzed),
		slog.Int("errors", result.SnapshotErrors),
	)
	span.SetAttributes(attribute.Int("collect.tables", result.TablesAnalyzed))
	return result, nil
}

// Project builds capacity projections for every table with snapshot history.
// It reads only the store, so repeated calls over unchanged data return
// identical reports.
func (s *ForecastService) Project(ctx context.Context, schema string, horizons []int) (ForecastReport, error) {
	ctx, span := s.tracer.Start(ctx, "ForecastService.Project",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.namespace", schema),
		),
	)
	defer span.End()

	if len(horizons) == 0 {
		horizons = forecast.DefaultHorizons
	}

	refs, err := s.store.SnapshotTables(ctx, schema)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ForecastReport{}, fmt.Errorf("list snapshot tables: %w", err)
	}

	report := ForecastReport{
		GeneratedAt: time.Now().UTC(),
		Schema:      schema,
		Tables:      make([]forecast.TableProjection, 0, len(refs)),
	}

	for _, ref := range refs {
		snaps, err := s.store.Snapshots(ctx, ref)
		if err != nil {
			s.logger.WarnContext(ctx, "snapshot series unavailable",
				slog.String("table", ref.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(snaps) == 0 {
			continue
		}
		history, err := s.store.GrowthHistory(ctx, ref)
		if err != nil {
			s.logger.WarnContext(ctx, "growth history unavailable",
				slog.String("table", ref.Name),
				slog.String("error", err.Error()),
			)
		}

		trend := forecast.EstimateTrend(snaps, history)
		if trend.DataPoints < 2 {
			s.logger.DebugContext(ctx, "trend degraded to stable",
				slog.String("table", ref.Name),
				slog.String("error", domain.ErrInsufficientHistory.Error()),
			)
		}
		report.Tables = append(report.Tables, forecast.Project(trend, horizons))
	}

	report.Database = forecast.Rollup(report.Tables, horizons)

	dbSnap, err := s.store.LatestDatabase(ctx)
	switch {
	case err == nil:
		report.Database.Server = forecast.ServerFromSnapshot(dbSnap)
	case errors.Is(err, domain.ErrNotFound):
		// No successful run has captured a database snapshot yet.
	default:
		s.logger.WarnContext(ctx, "database snapshot unavailable",
			slog.String("error", err.Error()),
		)
	}

	span.SetAttributes(attribute.Int("project.tables", len(report.Tables)))
	return report, nil
}
