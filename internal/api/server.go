// Package api implements the HTTP query API: six JSON endpoints over
// the store plus /health, /metrics, and /swagger, assembled on Echo
// with the same middleware ordering as a standard gateway API: recover,
// request logging, body limit, then request-ID tagging.
package api

import (
	"context"
	"io/fs"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoswagger "github.com/swaggo/echo-swagger"

	"gomodel/internal/admission"
	"gomodel/internal/storage"
)

// Config controls which optional routes the server exposes.
type Config struct {
	// BodySizeLimit caps request bodies (e.g. "1M"). Empty means "1M".
	BodySizeLimit string

	// MetricsEnabled exposes Prometheus metrics at MetricsEndpoint.
	MetricsEnabled bool

	// MetricsEndpoint is the path metrics are served at (default /metrics).
	MetricsEndpoint string

	// SwaggerEnabled exposes generated OpenAPI docs at /swagger/index.html.
	SwaggerEnabled bool

	// UI, if non-nil, is mounted at "/" to serve a static operator UI.
	// Its presence is optional; the query API works without it.
	UI fs.FS

	// MaxLogLength and MaxLogCount mirror the ingest-path caps, applied
	// by POST /api/insert_log since it bypasses the writer channel.
	MaxLogLength int
	MaxLogCount  int
}

// Server wraps the Echo HTTP server for the query API.
type Server struct {
	echo *echo.Echo
}

// New assembles the query API server against store. cache is the same
// admission cache instance the ingest listener uses, so cardinality
// decisions agree across both insert paths.
func New(store *storage.Store, cache admission.Cache, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := &Handler{
		store:       store,
		admission:   cache,
		maxLogLen:   cfg.MaxLogLength,
		maxLogCount: cfg.MaxLogCount,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogger())

	bodyLimit := cfg.BodySizeLimit
	if bodyLimit == "" {
		bodyLimit = "1M"
	}
	e.Use(middleware.BodyLimit(bodyLimit))

	// Every request gets a request ID, echoed back for correlation.
	// This API has no auth, so it's the only per-request identifier
	// operators have to tie logs together.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set("X-Request-ID", id)
			return next(c)
		}
	})

	e.GET("/health", h.Health)

	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoswagger.WrapHandler)
	}

	if cfg.MetricsEnabled {
		metricsPath := cfg.MetricsEndpoint
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")
	api.GET("/hashes", h.Hashes)
	api.GET("/date_range", h.DateRange)
	api.GET("/logs/:hash", h.LogsByHash)
	api.GET("/log_info", h.LogInfo)
	api.POST("/purge_logs", h.PurgeLogs)
	api.POST("/insert_log", h.InsertLog)

	if cfg.UI != nil {
		e.StaticFS("/", cfg.UI)
	}

	return &Server{echo: e}
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP allows Server to be exercised directly by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
