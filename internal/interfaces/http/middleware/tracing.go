package middleware

import (
	"github.com/erp/labelprint/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, continuing any trace the
// caller propagated. Without options it uses the global tracer provider
// and propagator.
func Tracing(service string, opts ...otelgin.Option) gin.HandlerFunc {
	return otelgin.Middleware(service, opts...)
}

// SpanRequestID tags the request span with the request ID. It must run
// after Tracing and logger.GinMiddleware.
func SpanRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := logger.RequestID(ctx); id != "" {
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("request_id", id))
		}
		c.Next()
	}
}
