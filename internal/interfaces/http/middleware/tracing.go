// Package middleware provides HTTP middleware for the StoreOps service.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength caps caller-supplied request ids before they
	// reach logs and trace attributes.
	MaxRequestIDLength = 128
	// MaxTenantIDLength caps tenant ids read from headers.
	MaxTenantIDLength = 64
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: "storeops-backend", Enabled: true}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps the chain in an otelgin server span named by
// route pattern (e.g. "GET /api/v1/agents/:slug"). Pair with
// SpanErrorMarker and TracingAttributeInjector further down the chain:
// otelgin restores the original request context before returning, so
// span enrichment must happen from inside the wrapped chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// spanRequestID mirrors the RequestID middleware's context key, with a
// capped header fallback for requests that bypassed it.
func spanRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// spanTenantID prefers the tenant the tenant middleware resolved. The
// raw header is only trusted when it is a well-formed UUID, so free-form
// strings cannot be injected into trace attributes.
func spanTenantID(c *gin.Context) string {
	if id := GetTenantID(c); id != "" {
		return id
	}
	header := c.GetHeader(TenantHeaderKey)
	if header != "" && len(header) <= MaxTenantIDLength && uuidRegex.MatchString(header) {
		return header
	}
	return ""
}

// SpanErrorMarker marks spans with error status for HTTP error
// responses. otelgin only marks 5xx; client errors matter here too
// because a rejected approval or an unknown agent slug is worth finding
// in traces. Place AFTER the Tracing middleware in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		var message string
		switch {
		case status >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case status == http.StatusUnauthorized:
			message = "Unauthorized"
		case status == http.StatusForbidden:
			message = "Forbidden"
		case status == http.StatusNotFound:
			message = "Not Found"
		default:
			message = "Client Error"
		}

		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

// TracingAttributeInjector stamps tenant_id, user_id, and request_id
// onto the current span. Place AFTER both the Tracing and tenant
// middleware so those values are already in context.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := spanRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if id := spanTenantID(c); id != "" {
				span.SetAttributes(attribute.String("tenant_id", id))
			}
			if id := GetUserID(c); id != "" {
				span.SetAttributes(attribute.String("user_id", id))
			}
		}
		c.Next()
	}
}
