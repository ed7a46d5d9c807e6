// Package httpapi exposes the decision engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/metrics"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
)

// maxUploadSize bounds image and audio uploads.
const maxUploadSize = 20 << 20

// Engine is the subset of *brain.Engine the API serves.
type Engine interface {
	Process(ctx context.Context, in models.Input) brain.Response
	Search(ctx context.Context, query, deviceCategory string) ([]models.ProblemRecord, error)
	Related(query, deviceCategory string, limit int) ([]search.RelatedResult, error)
	SubmitFeedback(ctx context.Context, queryID string, success bool, score *int) (learning.FeedbackResult, error)
	AddRecord(ctx context.Context, rec models.ProblemRecord) (int64, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides HTTP endpoints for smartfix.
type Server struct {
	echo    *echo.Echo
	engine  Engine
	metrics *metrics.Metrics
	logger  *zap.Logger
	config  *Config
}

// NewServer creates a new HTTP server.
func NewServer(engine Engine, m *metrics.Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", maxUploadSize>>20)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:    e,
		engine:  engine,
		metrics: m,
		logger:  logger,
		config:  cfg,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	v1 := s.echo.Group("/api/v1")

	query := v1.Group("/query")
	query.POST("/text", s.handleTextQuery)
	query.POST("/log", s.handleLogQuery)
	query.POST("/image", s.handleImageQuery)
	query.POST("/voice", s.handleVoiceQuery)

	b := v1.Group("/brain")
	b.GET("/search", s.handleSearch)
	b.GET("/related", s.handleRelated)
	b.POST("/feedback", s.handleFeedback)
	b.POST("/solutions", s.handleAddSolution)
	b.GET("/stats", s.handleStats)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
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
