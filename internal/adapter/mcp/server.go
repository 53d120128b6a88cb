package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
	"github.com/sourcegauge/sourcegauge/internal/core/service"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with tools and logging hooks. defaultSchema
// is used when tool calls omit the schema argument.
func NewServer(version string, analyzer *service.AnalyzerService, forecaster *service.ForecastService, defaultSchema string, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, analyzer, forecaster, defaultSchema)

	return s
}
