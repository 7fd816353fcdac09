package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// registrarFunc adapts a function to RouteRegistrar, the way handlers
// implement it.
type registrarFunc func(rg *gin.RouterGroup)

func (f registrarFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)

	r.Register(registrarFunc(func(rg *gin.RouterGroup) {
		rg.GET("/agents", func(c *gin.Context) { c.Status(http.StatusOK) })
	}))
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/v2/agents", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterSetup_MountsUnderPrefix(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	r.Register(registrarFunc(func(rg *gin.RouterGroup) {
		agents := rg.Group("/agents")
		agents.GET("/runs", func(c *gin.Context) { c.String(http.StatusOK, "runs") })
		agents.POST("/:slug/run", func(c *gin.Context) { c.String(http.StatusAccepted, c.Param("slug")) })
	}))
	r.Setup()

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{"GET", "/api/v1/agents/runs", http.StatusOK, "runs"},
		{"POST", "/api/v1/agents/restock/run", http.StatusAccepted, "restock"},
		{"GET", "/agents/runs", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
		if tt.body != "" {
			assert.Equal(t, tt.body, w.Body.String())
		}
	}
}

func TestRouter_MultipleRegistrars(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	r.Register(registrarFunc(func(rg *gin.RouterGroup) {
		rg.GET("/agents/runs", func(c *gin.Context) { c.String(http.StatusOK, "runs") })
	})).Register(registrarFunc(func(rg *gin.RouterGroup) {
		rg.GET("/system/info", func(c *gin.Context) { c.String(http.StatusOK, "info") })
	}))
	r.Setup()

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest("GET", "/api/v1/agents/runs", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "runs", first.Body.String())

	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest("GET", "/api/v1/system/info", nil))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "info", second.Body.String())
}
