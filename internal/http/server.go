// Package http provides the HTTP API for syllabusd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/syllabusd/internal/extraction"
	"github.com/fyrsmithlabs/syllabusd/internal/logging"
	"github.com/fyrsmithlabs/syllabusd/internal/snippet"
)

// Extractor runs the extraction pipeline. *extraction.Pipeline implements it.
type Extractor interface {
	Run(ctx context.Context, in extraction.Input) (*extraction.Result, error)
	Snippets(text string) []snippet.Snippet
	OracleConfigured() bool
}

// Publisher hands a finished result to the task-creation layer.
type Publisher interface {
	Publish(ctx context.Context, res *extraction.Result) error
}

var _ Extractor = (*extraction.Pipeline)(nil)

// Server provides HTTP endpoints for syllabusd.
type Server struct {
	echo      *echo.Echo
	extractor Extractor
	publisher Publisher
	metrics   *HTTPMetrics
	logger    *logging.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// MaxBodyKB caps request bodies. Zero means 1024.
	MaxBodyKB int
	Version   string
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithPublisher enables the publish flag on POST /api/v1/extract.
func WithPublisher(p Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithHTTPMetrics installs the OTEL metrics middleware.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new HTTP server.
func NewServer(extractor Extractor, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.MaxBodyKB <= 0 {
		cfg.MaxBodyKB = 1024
	}

	s := &Server{
		extractor: extractor,
		logger:    logger,
		config:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", cfg.MaxBodyKB)))
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogger)

	s.echo = e
	s.registerRoutes()

	return s, nil
}

// requestLogger puts the request ID into the request context and logs each
// request once it has been handled.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		c.SetRequest(req.WithContext(ctx))

		if err := next(c); err != nil {
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/extract", s.handleExtract)
	v1.POST("/snippets", s.handleSnippets)
}

// Handler returns the root handler, for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Echo returns the underlying Echo instance for registering extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Oracle:  "disabled",
		Publish: "disabled",
	}
	if s.extractor.OracleConfigured() {
		resp.Oracle = "configured"
	}
	if s.publisher != nil {
		resp.Publish = "enabled"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExtract(c echo.Context) error {
	ctx := c.Request().Context()

	var req ExtractRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid extract request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	if req.Publish && s.publisher == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "publishing is not configured")
	}

	res, err := s.extractor.Run(ctx, extraction.Input{
		Text:        req.Text,
		DocumentID:  req.DocumentID,
		Assessments: req.Assessments,
	})
	if errors.Is(err, extraction.ErrEmptyInput) {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	if err != nil {
		s.logger.Error(ctx, "extraction failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "extraction failed")
	}

	resp := newExtractResponse(res)
	if req.Publish {
		if err := s.publisher.Publish(ctx, res); err != nil {
			s.logger.Warn(ctx, "publish failed", zap.String("run_id", res.RunID), zap.Error(err))
			resp.PublishError = err.Error()
		} else {
			resp.Published = true
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSnippets(c echo.Context) error {
	var req SnippetsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	snippets := s.extractor.Snippets(req.Text)
	resp := SnippetsResponse{Snippets: make([]SnippetView, 0, len(snippets))}
	for _, sn := range snippets {
		dates := sn.Dates
		if dates == nil {
			dates = []string{}
		}
		resp.Snippets = append(resp.Snippets, SnippetView{
			Text:         sn.Text,
			Dates:        dates,
			StartLine:    sn.StartLine,
			EndLine:      sn.EndLine,
			Grid:         sn.Grid,
			Classifiable: sn.Classifiable(),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
