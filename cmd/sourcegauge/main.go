package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	mcpadapter "github.com/sourcegauge/sourcegauge/internal/adapter/mcp"
	"github.com/sourcegauge/sourcegauge/internal/adapter/postgres"
	"github.com/sourcegauge/sourcegauge/internal/adapter/rules"
	"github.com/sourcegauge/sourcegauge/internal/audit"
	"github.com/sourcegauge/sourcegauge/internal/config"
	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
	"github.com/sourcegauge/sourcegauge/internal/core/quality"
	"github.com/sourcegauge/sourcegauge/internal/core/service"
	"github.com/sourcegauge/sourcegauge/internal/telemetry"
	"go.opentelemetry.io/otel"
)

var version = "dev"

const usage = `sourcegauge — source database readiness assessment

Usage:
  sourcegauge <command> [flags]

Commands:
  analyze   Run all quality checks and print the findings report as JSON
  collect   Capture a size/churn snapshot of every table into the store
  project   Print capacity projections from the collected snapshot series
  serve     Serve the analysis tools over MCP stdio

Run 'sourcegauge <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	schema := fs.String("schema", "", "schema to analyze (overrides DATABASE_SCHEMA, default public)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	queryTimeout := fs.Duration("query-timeout", 0, "per-statement timeout (overrides QUERY_TIMEOUT)")
	sampleSize := fs.Int("sample-size", 0, "rows sampled per column (overrides SAMPLE_SIZE)")
	rulesFile := fs.String("rules-file", "", "path to rules YAML (overrides RULES_FILE)")
	auditLog := fs.String("audit-log", "", "path to NDJSON audit log file")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics")
	horizons := fs.String("horizons", "", "projection horizons in months, comma-separated (project only, default 6,12,24)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	overrides := config.Overrides{
		OTelEnabled: *otelEnabled,
		AuditLog:    *auditLog,
	}
	if *databaseURL != "" {
		overrides.DatabaseURL = databaseURL
	}
	if *schema != "" {
		overrides.Schema = schema
	}
	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}
	if *queryTimeout != 0 {
		overrides.QueryTimeout = queryTimeout
	}
	if *sampleSize != 0 {
		overrides.SampleSize = sampleSize
	}
	if *rulesFile != "" {
		overrides.RulesFile = rulesFile
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr — stdout carries the JSON report, or the MCP stdio
	// transport when serving.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close(logger)

	switch command {
	case "analyze":
		report, err := app.analyzer.Analyze(ctx, cfg.Schema)
		if err != nil {
			return err
		}
		return printJSON(report)
	case "collect":
		result, err := app.forecaster.Collect(ctx, cfg.Schema)
		if err != nil {
			return err
		}
		return printJSON(result)
	case "project":
		months, err := parseHorizons(*horizons)
		if err != nil {
			return err
		}
		report, err := app.forecaster.Project(ctx, cfg.Schema, months)
		if err != nil {
			return err
		}
		return printJSON(report)
	case "serve":
		return serveMCP(ctx, cfg, app, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// app bundles the wired services and everything that needs teardown.
type app struct {
	analyzer   *service.AnalyzerService
	forecaster *service.ForecastService
	inst       port.Instrumentation
	closeFns   []func(context.Context) error
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	tracer := telemetry.NoopTracer()
	var inst port.Instrumentation = telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "sourcegauge", version)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.closeFns = append(a.closeFns, provider.Shutdown)
		tracer = otel.Tracer("sourcegauge")
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	}
	a.inst = inst

	ruleset := domain.DefaultRuleset()
	thresholds := domain.DefaultThresholds()
	if cfg.RulesFile != "" {
		var err error
		ruleset, thresholds, err = rules.LoadFromFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		logger.Info("rules loaded", slog.String("file", cfg.RulesFile))
	}
	// An explicit env or flag value wins over the rules file; otherwise the
	// rules file (or the built-in default) stands.
	if cfg.SampleSizeSet {
		thresholds.SampleSize = cfg.SampleSize
	}

	var auditor port.RunAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		auditor = fa
		a.closeFns = append(a.closeFns, func(context.Context) error { return fa.Close() })
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolSettings{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.closeFns = append(a.closeFns, func(context.Context) error {
		pool.Close()
		return nil
	})
	logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	guard := domain.NewReadOnlyGuard()
	metadata := postgres.NewMetadata(pool, guard, cfg.QueryTimeout)
	sampler := postgres.NewSampler(pool, guard, cfg.QueryTimeout)
	collector := postgres.NewCollector(pool, guard, cfg.QueryTimeout)
	store := postgres.NewStore(pool)

	engine := quality.NewEngine(ruleset, thresholds, port.FullCapabilities(), sampler, logger,
		quality.WithAuditor(auditor),
		quality.WithInstrumentation(inst),
	)

	conn := quality.ConnectionFromDSN(cfg.DatabaseURL)
	a.analyzer = service.NewAnalyzerService(metadata, engine, auditor, conn, logger, tracer)
	a.forecaster = service.NewForecastService(metadata, collector, store, logger, tracer)
	return a, nil
}

func (a *app) close(logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		if err := a.closeFns[i](shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}
}

func serveMCP(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) error {
	tracer := telemetry.NoopTracer()
	if cfg.OTelEnabled {
		tracer = otel.Tracer("sourcegauge")
	}

	mcpServer := mcpadapter.NewServer(version, a.analyzer, a.forecaster, cfg.Schema, logger, tracer, a.inst)
	stdioServer := server.NewStdioServer(mcpServer)

	logger.Info("serving MCP over stdio", slog.String("version", version))
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func parseHorizons(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var months []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid --horizons value %q: must be positive integers", part)
		}
		months = append(months, n)
	}
	return months, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
