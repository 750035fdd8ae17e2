package server

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// createLoggingMiddleware creates middleware that logs all MCP method calls
func createLoggingMiddleware(logger *zap.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(
			ctx context.Context,
			method string,
			req mcp.Request,
		) (mcp.Result, error) {
			start := time.Now()
			sessionID := req.GetSession().ID()

			logger.Debug("request",
				zap.String("session", sessionID),
				zap.String("method", method),
			)

			result, err := next(ctx, method, req)

			fields := []zap.Field{
				zap.String("session", sessionID),
				zap.String("method", method),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("request failed", append(fields, zap.Error(err))...)
			} else {
				logger.Info("request", fields...)
			}

			return result, err
		}
	}
}
