package middleware

import (
	"net/http"
	"strings"

	"github.com/storeops/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys for the identity the request acts on behalf of.
const (
	TenantIDKey     = "tenant_id"
	UserIDKey       = "user_id"
	TenantHeaderKey = "X-Tenant-ID"
	UserHeaderKey   = "X-User-ID"
)

// TenantValidator checks that a tenant exists and is active before the
// request proceeds. Wire the store repository here when strict mode is on.
type TenantValidator interface {
	ValidateTenant(tenantID string) error
}

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// SubdomainEnabled resolves the tenant from the host when the header
	// is absent, e.g. "acme.storeops.io" -> "acme"
	SubdomainEnabled bool
	// BaseDomain is the base domain for subdomain extraction
	BaseDomain string
	// SkipPaths are paths that don't require tenant context
	SkipPaths []string
	// Required rejects requests without a resolvable tenant
	Required bool
	// Validator is optional; nil skips existence checks
	Validator TenantValidator
	Logger    *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SubdomainEnabled: false,
		BaseDomain:       "",
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:         true,
		Validator:        nil,
		Logger:           nil,
	}
}

// TenantMiddleware extracts the tenant from the X-Tenant-ID header (or the
// subdomain when enabled) and the acting operator from X-User-ID. Every
// repository query downstream filters by the tenant set here.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// OptionalTenantMiddleware resolves tenant context when present but lets
// tenantless requests through; handlers that need a tenant reject them.
func OptionalTenantMiddleware() gin.HandlerFunc {
	cfg := DefaultTenantConfig()
	cfg.Required = false
	return TenantMiddlewareWithConfig(cfg)
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		tenantID := c.GetHeader(TenantHeaderKey)
		extractionMethod := "header"
		if tenantID == "" && cfg.SubdomainEnabled && cfg.BaseDomain != "" {
			tenantID = tenantFromSubdomain(c.Request.Host, cfg.BaseDomain)
			extractionMethod = "subdomain"
		}

		// Header tenants are row UUIDs; subdomain tenants are slugs the
		// validator resolves.
		if tenantID != "" && extractionMethod == "header" {
			if _, err := uuid.Parse(tenantID); err != nil {
				respondUnauthorized(c, "Invalid tenant ID format")
				return
			}
		}
		if tenantID == "" && cfg.Required {
			respondUnauthorized(c, "Tenant identification required")
			return
		}

		if tenantID != "" && cfg.Validator != nil {
			if err := cfg.Validator.ValidateTenant(tenantID); err != nil {
				log := cfg.Logger
				if log == nil {
					log = logger.FromContext(c.Request.Context())
				}
				log.Warn("Tenant validation failed",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
				respondUnauthorized(c, "Invalid or inactive tenant")
				return
			}
		}

		if tenantID != "" {
			c.Set(TenantIDKey, tenantID)

			ctx := c.Request.Context()
			log := logger.FromContext(ctx)
			ctx, log = logger.WithTenantID(ctx, log, tenantID)

			// The operator header identifies who approves/rejects actions.
			// It is advisory until an auth layer fronts this service.
			if userID := c.GetHeader(UserHeaderKey); userID != "" {
				c.Set(UserIDKey, userID)
				ctx, _ = logger.WithUserID(ctx, log, userID)
			}
			c.Request = c.Request.WithContext(ctx)

			if cfg.Logger != nil {
				cfg.Logger.Debug("Tenant identified",
					zap.String("tenant_id", tenantID),
					zap.String("method", extractionMethod),
				)
			}
		}

		c.Next()
	}
}

// tenantFromSubdomain extracts the tenant code from the request host,
// e.g. "acme.storeops.io" with baseDomain "storeops.io" returns "acme".
func tenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}
	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == host || subdomain == "" || subdomain == "www" {
		return ""
	}
	parts := strings.Split(subdomain, ".")
	return parts[0]
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetTenantID retrieves the tenant ID from gin.Context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetUserID retrieves the acting operator ID from gin.Context
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
