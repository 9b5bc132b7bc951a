package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/inflection"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eion/things/internal/health"
	"github.com/eion/things/internal/metrics"
	"github.com/eion/things/internal/things"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// Dependencies are the services the router wires into handlers
type Dependencies struct {
	Service things.ThingManager
	Logger  *zap.Logger
	Health  *health.Manager

	// Metrics and Gatherer are optional; when set, requests are measured and
	// MetricsPath serves the gathered metrics.
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
	MetricsPath string

	// RateLimiter is optional
	RateLimiter *RateLimiter
}

// NewRouter builds the gin engine serving the things resource
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.SetHTMLTemplate(parseTemplates())

	router.Use(RequestID())
	router.Use(RequestLogger(deps.Logger))

	var recorder metrics.Recorder = metrics.Nop{}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		recorder = deps.Metrics
	}

	router.Use(Recovery(deps.Logger))
	router.Use(cors.Default())

	if deps.Metrics != nil && deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	router.GET("/health", healthHandler(deps.Health))

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		deps.Logger.Error("Failed to create static sub-filesystem", zap.Error(err))
	} else {
		router.StaticFS("/static", http.FS(staticFS))
	}

	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}
	router.Use(ErrorHandler(deps.Logger))
	router.NoRoute(NoRoute(deps.Logger))

	h := NewThingsHandler(deps.Service, recorder, deps.Logger)

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/things")
	})

	for _, path := range []string{"/things", "/things.json", "/things.txt", "/things.html"} {
		router.GET(path, h.Index)
	}
	router.POST("/things", h.Create)
	router.POST("/things.json", h.Create)
	router.GET("/things/new", h.New)
	router.GET("/things/:id", h.Show)
	router.GET("/things/:id/edit", h.Edit)
	router.PUT("/things/:id", h.Update)
	router.PATCH("/things/:id", h.Update)
	router.DELETE("/things/:id", h.Destroy)

	return router
}

// NewHandler wraps the router with the transport-level concerns that run before routing
func NewHandler(router *gin.Engine, maxRequestSize int64) http.Handler {
	return LimitBody(maxRequestSize, MethodOverride(router))
}

func healthHandler(manager *health.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			c.JSON(http.StatusOK, gin.H{
				"status":    "healthy",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			return
		}

		report := manager.RuntimeHealthCheck(c.Request.Context())
		status, code := "healthy", http.StatusOK
		if !report.Healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"services":  report.Services,
		})
	}
}

func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"timestamp": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04:05 UTC")
		},
		"pluralize": pluralize,
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.tmpl"))
}

// pluralize renders "1 error" or "3 errors"
func pluralize(count int, noun string) string {
	if count != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", count, noun)
}
