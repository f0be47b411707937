package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
)

const (
	TraceIDHeader   = "X-Trace-ID"
	RequestIDHeader = "X-Request-ID"

	// TraceIDKey is the gin context key read by error responses.
	TraceIDKey   = "trace_id"
	RequestIDKey = "request_id"
)

// EnrichContext assigns the trace id echoed in responses and error bodies. The active span wins over
// an inbound X-Trace-ID so logs and spans agree.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := firstNonEmpty(spanTraceID(c.Request.Context()), c.GetHeader(TraceIDHeader))
		c.Set(TraceIDKey, id)
		c.Header(TraceIDHeader, id)
		c.Next()
	}
}

// RequestID propagates X-Request-ID through the request context; serviceclient forwards it downstream.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := firstNonEmpty(c.GetHeader(RequestIDHeader))
		c.Header(RequestIDHeader, id)
		c.Set(RequestIDKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey{}, id))
		c.Next()
	}
}

func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

func spanTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// firstNonEmpty falls back to a fresh uuid.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return uuid.NewString()
}
