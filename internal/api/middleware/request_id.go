package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopfloor.io/mes/internal/pkg/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Incoming ids longer than this are replaced.
const maxRequestIDLen = 128

type requestScope struct {
	id  string
	log *zap.Logger
}

type scopeKey struct{}

// RequestID assigns every request an id (the caller's, or a fresh UUIDv7),
// echoes it in the response and stores a logger tagged with it.
func RequestID() gin.HandlerFunc {
	base := logger.Named("api")
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLen {
			id, err := uuid.NewV7()
			if err != nil {
				id = uuid.New()
			}
			rid = id.String()
		}
		c.Writer.Header().Set(RequestIDHeader, rid)

		scope := requestScope{
			id: rid,
			log: base.With(
				zap.String("request_id", rid),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
			),
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), scopeKey{}, scope))
		c.Next()
	}
}

// GetRequestID returns the id RequestID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(requestScope)
	return scope.id
}

// RequestLogger returns the request-scoped logger, or the api logger outside
// a request.
func RequestLogger(ctx context.Context) *zap.Logger {
	if scope, ok := ctx.Value(scopeKey{}).(requestScope); ok {
		return scope.log
	}
	return logger.Named("api")
}
