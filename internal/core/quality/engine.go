package quality

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// checkDescriptor registers one check with the capabilities it depends on.
// Checks can be added or removed here without touching the aggregator.
type checkDescriptor struct {
	kind     domain.CheckKind
	requires func(port.Capabilities) bool
	run      func(ctx context.Context, table *port.TableFact) []domain.Finding
}

func anyCapabilities(port.Capabilities) bool { return true }

// Engine runs the quality checks over one table at a time. Checks are pure
// with respect to their declared inputs; source reads go through the injected
// StatsSampler so every check is testable with fixture data.
//
// Execution is sequential: several checks issue source queries that must not
// overlap on a shared connection.
type Engine struct {
	rules      domain.Ruleset
	thresholds domain.Thresholds
	caps       port.Capabilities
	sampler    port.StatsSampler
	logger     *slog.Logger
	auditor    port.RunAuditor
	inst       port.Instrumentation
	checks     []checkDescriptor

	// Run-scoped catalog context, built by BeginRun.
	allPKs     map[string][]string
	tableNames map[string]bool
	serverTZ   string
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithAuditor attaches a run auditor.
func WithAuditor(a port.RunAuditor) Option {
	return func(e *Engine) { e.auditor = a }
}

// WithInstrumentation attaches metric instruments.
func WithInstrumentation(inst port.Instrumentation) Option {
	return func(e *Engine) { e.inst = inst }
}

func NewEngine(rules domain.Ruleset, thresholds domain.Thresholds, caps port.Capabilities, sampler port.StatsSampler, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		rules:      rules,
		thresholds: thresholds,
		caps:       caps,
		sampler:    sampler,
		logger:     logger,
		inst:       port.NoopInstrumentation{},
		serverTZ:   domain.UnknownTimezone,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.checks = []checkDescriptor{
		{domain.CheckControlledValueCandidate, func(c port.Capabilities) bool { return c.ConstraintIntrospection }, e.checkControlledValues},
		{domain.CheckNullableButNeverNull, anyCapabilities, e.checkNullableNeverNull},
		{domain.CheckMissingPrimaryKey, anyCapabilities, e.checkMissingPrimaryKey},
		{domain.CheckMissingForeignKey, anyCapabilities, e.checkMissingForeignKeys},
		{domain.CheckFormatInconsistency, func(c port.Capabilities) bool { return c.RowSampling }, e.checkFormatInconsistency},
		{domain.CheckRangeViolation, anyCapabilities, e.checkRangeViolations},
		{domain.CheckDeleteManagement, anyCapabilities, e.checkDeleteManagement},
		{domain.CheckLateArrivingData, func(c port.Capabilities) bool { return c.RowSampling }, e.checkLateArrival},
		{domain.CheckTimezone, anyCapabilities, e.checkTimezone},
	}
	return e
}

// BeginRun builds the run-scoped catalog indexes the cross-table checks need
// (FK target resolution, audit-trail lookup) and resolves the server timezone
// once for the whole run.
func (e *Engine) BeginRun(ctx context.Context, tables []port.TableFact) {
	e.allPKs = make(map[string][]string, len(tables))
	e.tableNames = make(map[string]bool, len(tables))
	for _, t := range tables {
		e.allPKs[t.Name] = t.PrimaryKeys
		e.tableNames[strings.ToLower(t.Name)] = true
	}

	e.serverTZ = domain.UnknownTimezone
	if e.caps.ServerTimezone && e.sampler != nil {
		e.serverTZ = e.sampler.ServerTimezone(ctx)
	}
}

// ServerTimezone returns the timezone resolved by BeginRun.
func (e *Engine) ServerTimezone() string { return e.serverTZ }

// RunChecks executes every registered check against one table and returns
// findings keyed by check kind. Every kind appears in the result, empty when
// the check was skipped or failed, so the report shape stays stable across
// sources.
// No error escapes a check: a failing check degrades to an empty result.
func (e *Engine) RunChecks(ctx context.Context, table *port.TableFact) map[domain.CheckKind][]domain.Finding {
	results := make(map[domain.CheckKind][]domain.Finding, len(e.checks))

	for _, check := range e.checks {
		results[check.kind] = nil

		if !check.requires(e.caps) {
			e.logger.DebugContext(ctx, "check skipped, capability missing",
				slog.String("check", string(check.kind)),
				slog.String("table", table.Name),
			)
			continue
		}

		results[check.kind] = e.runOne(ctx, check, table)
	}

	return results
}

// runOne executes a single check fail-soft: a panic or stray error becomes an
// empty result and a log line, never an aborted run.
func (e *Engine) runOne(ctx context.Context, check checkDescriptor, table *port.TableFact) (findings []domain.Finding) {
	start := time.Now()

	defer func() {
		durationMS := time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "check failed",
				slog.String("check", string(check.kind)),
				slog.String("table", table.Name),
				slog.Any("panic", r),
			)
			e.inst.IncrementCheckErrors(ctx)
			findings = nil
		}

		e.inst.RecordCheckDuration(ctx, string(check.kind), float64(durationMS))
		e.inst.IncrementFindings(ctx, int64(len(findings)))
		if e.auditor != nil {
			e.auditor.Record(ctx, port.AuditEntry{
				Operation:  "check",
				Table:      table.Name,
				Check:      string(check.kind),
				Findings:   len(findings),
				DurationMS: durationMS,
			})
		}
	}()

	return check.run(ctx, table)
}

// sampleTable degrades sampler failures to an empty sample: a denied or
// timed-out query means reduced confidence, not a failed run.
func (e *Engine) sampleTable(ctx context.Context, table *port.TableFact, columns []string) []map[string]any {
	ref := port.TableRef{Schema: table.Schema, Name: table.Name}
	rows, err := e.sampler.SampleRows(ctx, ref, columns, e.thresholds.SampleSize)
	if err != nil {
		e.logger.WarnContext(ctx, "row sampling unavailable",
			slog.String("table", table.Name),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return rows
}
