package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegauge/sourcegauge/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "sourcegauge"

// Tool descriptions
const (
	descListTables = "List all tables in the analyzed schema with row counts, primary keys, " +
		"declared foreign keys and column facts (types, nullability, cardinality). " +
		"Call this first to see what the source contains before running a full analysis."

	descAnalyzeQuality = "Run the full data-quality assessment over every table in the schema: " +
		"controlled-value (enum-like) candidates, nullable-but-never-null columns, missing primary keys, " +
		"missing foreign keys with orphan detection, format inconsistencies in text columns, " +
		"negative pricing/quantity values, delete management strategy, late-arriving data lag, " +
		"and timezone consistency. Returns findings per table plus a database-wide summary. " +
		"Use this to judge whether the source is ready for reliable extraction."

	descCollectSnapshots = "Capture a point-in-time snapshot of every table's size, row count and " +
		"write churn into the snapshot store, plus monthly growth history derived from creation timestamps. " +
		"Run this periodically; projections improve as the series accumulates."

	descProjectCapacity = "Project row counts and storage sizes 6, 12 and 24 months ahead from the " +
		"collected snapshot series. Includes per-table growth trends, write profiles, and a database " +
		"rollup with the fastest-growing and largest tables. Requires at least one collection run."

	descSchemaParam = "Schema to analyze (defaults to the configured schema)"
)

// RegisterTools wires the tool handlers. defaultSchema is used when a tool
// call omits the schema argument; empty falls back to "public".
func RegisterTools(s *server.MCPServer, analyzer *service.AnalyzerService, forecaster *service.ForecastService, defaultSchema string) {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
			mcp.WithString("schema",
				mcp.Description(descSchemaParam),
			),
		),
		listTablesHandler(analyzer, defaultSchema),
	)

	s.AddTool(
		mcp.NewTool("analyze_quality",
			mcp.WithDescription(descAnalyzeQuality),
			mcp.WithString("schema",
				mcp.Description(descSchemaParam),
			),
		),
		analyzeQualityHandler(analyzer, defaultSchema),
	)

	if forecaster != nil {
		s.AddTool(
			mcp.NewTool("collect_snapshots",
				mcp.WithDescription(descCollectSnapshots),
				mcp.WithString("schema",
					mcp.Description(descSchemaParam),
				),
			),
			collectSnapshotsHandler(forecaster, defaultSchema),
		)

		s.AddTool(
			mcp.NewTool("project_capacity",
				mcp.WithDescription(descProjectCapacity),
				mcp.WithString("schema",
					mcp.Description(descSchemaParam),
				),
			),
			projectCapacityHandler(forecaster, defaultSchema),
		)
	}
}

func schemaArg(request mcp.CallToolRequest, defaultSchema string) string {
	if s, ok := request.GetArguments()["schema"].(string); ok && s != "" {
		return s
	}
	return defaultSchema
}

func listTablesHandler(analyzer *service.AnalyzerService, defaultSchema string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := analyzer.ListTables(ctx, schemaArg(request, defaultSchema))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tables: %v", err)), nil
		}

		data, err := json.Marshal(tables)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func analyzeQualityHandler(analyzer *service.AnalyzerService, defaultSchema string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = service.WithToolName(ctx, "analyze_quality")
		report, err := analyzer.Analyze(ctx, schemaArg(request, defaultSchema))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		data, err := json.Marshal(report)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func collectSnapshotsHandler(forecaster *service.ForecastService, defaultSchema string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = service.WithToolName(ctx, "collect_snapshots")
		result, err := forecaster.Collect(ctx, schemaArg(request, defaultSchema))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("collection failed: %v", err)), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func projectCapacityHandler(forecaster *service.ForecastService, defaultSchema string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = service.WithToolName(ctx, "project_capacity")
		report, err := forecaster.Project(ctx, schemaArg(request, defaultSchema), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("projection failed: %v", err)), nil
		}

		data, err := json.Marshal(report)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}
