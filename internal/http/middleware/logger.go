package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"chatconnect.app/assistant/common/logger"
)

// Logger logs one line per request. Streams are logged when they close.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}

// SessionFields tags the request context with the session id route param.
func SessionFields() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionID := c.Param("session_id"); sessionID != "" {
			ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
				SessionID: logger.Ptr(sessionID),
				Component: "assistant.http",
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
