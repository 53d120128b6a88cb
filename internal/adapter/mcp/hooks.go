package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// inFlightCall tracks one tool invocation from before-hook to completion.
type inFlightCall struct {
	tool  string
	start time.Time
	span  trace.Span
}

// ToolCallHooks returns server hooks that log every tool call and, when a
// tracer or instrumentation is supplied, record spans and duration metrics.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	var calls sync.Map // request id -> *inFlightCall

	finish := func(ctx context.Context, id any, failed bool, errMsg string) {
		v, ok := calls.LoadAndDelete(id)
		if !ok {
			return
		}
		call := v.(*inFlightCall)
		duration := time.Since(call.start)

		level := slog.LevelInfo
		if failed {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", call.tool),
			slog.Duration("duration", duration),
			slog.Bool("error", failed),
		}
		if errMsg != "" {
			attrs = append(attrs, slog.String("error.message", errMsg))
		}
		logger.LogAttrs(ctx, level, "tool call", attrs...)

		if inst != nil {
			inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
		}
		if call.span != nil {
			if failed {
				if errMsg == "" {
					errMsg = "tool returned error"
				}
				call.span.SetStatus(codes.Error, errMsg)
			}
			call.span.End()
		}
	}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		call := &inFlightCall{tool: req.Params.Name, start: time.Now()}
		if tracer != nil {
			_, span := tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(attribute.String("mcp.tool", req.Params.Name)),
			)
			call.span = span
		}
		calls.Store(id, call)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		failed := false
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			failed = true
		}
		finish(ctx, id, failed, "")
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		finish(ctx, id, true, err.Error())
	})

	return hooks
}
