// Package server provides the HTTP API for doccached.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tasklens/doccached/internal/docsync"
	"github.com/tasklens/doccached/internal/retrieval"
)

// Server exposes search, sync, and status over HTTP.
type Server struct {
	echo   *echo.Echo
	chain  *retrieval.Chain
	engine *docsync.Engine
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates an HTTP server over the retrieval chain and sync engine.
func NewServer(chain *retrieval.Chain, engine *docsync.Engine, logger *zap.Logger, cfg *Config) (*Server, error) {
	if chain == nil {
		return nil, fmt.Errorf("retrieval chain cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("sync engine cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9180}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		chain:  chain,
		engine: engine,
		logger: logger.Named("http"),
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)
	v1.POST("/sync", s.handleSync)
	v1.GET("/status", s.handleStatus)
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	TenantID string `json:"tenant_id"`
	ScopeID  string `json:"scope_id"`
	Query    string `json:"query"`
	TopN     int    `json:"top_n"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []string `json:"results"`
	Count   int      `json:"count"`
}

// SyncRequest is the request body for POST /api/v1/sync.
type SyncRequest struct {
	TenantID string `json:"tenant_id"`
	ScopeID  string `json:"scope_id"`
	Force    bool   `json:"force"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id field is required")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	results := s.chain.Search(c.Request().Context(), req.TenantID, req.ScopeID, req.Query, req.TopN)
	if results == nil {
		results = []string{}
	}

	return c.JSON(http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

func (s *Server) handleSync(c echo.Context) error {
	var req SyncRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid sync request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id field is required")
	}

	result := s.engine.Sync(c.Request().Context(), req.TenantID, req.ScopeID, req.Force)
	status := http.StatusOK
	if !result.Success {
		// The result body still describes what went wrong.
		status = http.StatusBadGateway
	}
	return c.JSON(status, result)
}

func (s *Server) handleStatus(c echo.Context) error {
	tenantID := c.QueryParam("tenant_id")
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id query parameter is required")
	}

	st := s.chain.Status(c.Request().Context(), tenantID, c.QueryParam("scope_id"))
	return c.JSON(http.StatusOK, st)
}

// Handler returns the underlying HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
