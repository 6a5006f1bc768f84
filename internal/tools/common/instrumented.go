package common

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/attachextract/internal/instrumentation"
	"github.com/teemow/attachextract/internal/logging"
	"github.com/teemow/attachextract/internal/server"
)

// InstrumentedToolHandler wraps a tool handler in a span, records the
// invocation metrics and logs every invocation with its outcome and duration.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg := sc.Config()
		account := GetAccountFromArgs(request.GetArguments(), cfg.Account)

		ctx, span := instrumentation.StartSpan(ctx, "mcp.tool."+toolName,
			attribute.String("mcp.tool", toolName),
		)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)

		attrs := []any{
			slog.String("tool", toolName),
			slog.String("status", status),
			slog.Duration(logging.KeyDuration, duration),
			logging.UserHash(account),
		}
		if err != nil {
			attrs = append(attrs, logging.Err(err))
		}
		sc.Logger().Info("tool invocation", attrs...)

		return result, err
	}
}
