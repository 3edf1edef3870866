// Package httpapi exposes single-record reranking over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/nbest"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
	"github.com/fyrsmithlabs/rerankd/internal/telemetry"
)

// Server serves the rerankd HTTP API. One server is bound to one
// reranker, so every request is scored under the same metric.
type Server struct {
	echo     *echo.Echo
	reranker *rerank.Reranker
	log      *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RateLimit is the sustained request rate allowed per client IP,
	// in requests per second. Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	// MaxBodyBytes caps the request body size. Zero disables the cap.
	MaxBodyBytes int64
}

// DefaultConfig returns the server defaults used when no config is
// given.
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         9090,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		RateLimit:    50,
		RateBurst:    100,
		MaxBodyBytes: 4 << 20,
	}
}

// NewServer creates the HTTP server around a configured reranker.
func NewServer(reranker *rerank.Reranker, log *logging.Logger, cfg *Config, tel *telemetry.Telemetry) (*Server, error) {
	if reranker == nil {
		return nil, fmt.Errorf("reranker cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(NewMetrics(log, tel).Middleware())
	if cfg.MaxBodyBytes > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxBodyBytes, 10)))
	}
	if cfg.RateLimit > 0 {
		e.Use(newClientRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst).Middleware())
	}

	s := &Server{
		echo:     e,
		reranker: reranker,
		log:      log,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and Prometheus scrape target
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/rerank", s.handleRerank)
}

// RerankRequest is the request body for POST /api/v1/rerank. Scores
// and text are required only when the server's metric is isometric.
type RerankRequest struct {
	Reference    string      `json:"reference"`
	Translations []string    `json:"translations"`
	Scores       [][]float64 `json:"scores,omitempty"`
	Text         string      `json:"text,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Metric string `json:"metric"`
}

// handleHealth reports liveness and the metric this instance serves.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Metric: string(s.reranker.Metric()),
	})
}

// handleRerank reranks one record. The response is the reordered
// record in the same wire format batch mode emits, so clients of
// either surface parse one shape.
func (s *Server) handleRerank(c echo.Context) error {
	ctx := c.Request().Context()

	var req RerankRequest
	if err := c.Bind(&req); err != nil {
		s.log.Warn(ctx, "invalid rerank request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if len(req.Translations) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "translations field is required")
	}

	rec := nbest.New(req.Translations, req.Scores, req.Text)
	res, err := s.reranker.Rerank(rec, req.Reference)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	body, err := json.Marshal(res.Record)
	if err != nil {
		return fmt.Errorf("encoding reranked record: %w", err)
	}
	return c.JSONBlob(http.StatusOK, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.log.Info(context.Background(), "starting http server",
		zap.String("addr", addr),
		zap.String("metric", string(s.reranker.Metric())))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for route registration in tests
// and wiring code.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
