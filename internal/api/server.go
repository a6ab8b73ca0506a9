// Package api is the HTTP surface of the newsletter agent.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/newsletter"
	"newsletter-agent/internal/pipeline"
	"newsletter-agent/internal/repository"
	"newsletter-agent/internal/tools"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Newsletters is the slice of newsletter.Service the handlers call.
type Newsletters interface {
	Register(ctx context.Context, u *models.User) (bool, error)
	Users(ctx context.Context, activeOnly bool) ([]models.User, error)
	Unsubscribe(ctx context.Context, email string) error
	History(ctx context.Context, email string) ([]models.NewsletterLog, error)
	Generate(ctx context.Context, req newsletter.GenerateRequest) (*pipeline.Run, error)
	Deliver(ctx context.Context, req newsletter.GenerateRequest) (*pipeline.Run, *models.Delivery, error)
	SendToActive(ctx context.Context) (*newsletter.BatchReport, error)
	SendTest(ctx context.Context, to string) (*models.Delivery, error)
	Stats(ctx context.Context) (*models.NewsletterStats, error)
	Search(ctx context.Context, text, email string, size int) ([]repository.SearchHit, error)
}

// ToolRunner lists and dispatches tools.
type ToolRunner interface {
	List() []tools.Descriptor
	Execute(ctx context.Context, name string, params map[string]interface{}) tools.ToolResult
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Config struct {
	AppName        string
	Version        string
	RequestTimeout time.Duration
	// BatchTimeout bounds POST /send-newsletter, which serves every subscriber.
	BatchTimeout time.Duration
}

type Server struct {
	config      Config
	echo        *echo.Echo
	newsletters Newsletters
	tools       ToolRunner
	checks      map[string]Check
	logger      logger.Logger
	started     time.Time
}

// New builds the router. checks back /ready and may be nil.
func New(cfg Config, newsletters Newsletters, runner ToolRunner, checks map[string]Check, log logger.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Minute
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		config:      cfg,
		echo:        e,
		newsletters: newsletters,
		tools:       runner,
		checks:      checks,
		logger:      log.With(map[string]interface{}{"component": "api"}),
		started:     time.Now(),
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(s.requestLogger)

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/health", s.health)
	e.GET("/ready", s.ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/register", s.register)
	e.GET("/users", s.listUsers)
	e.DELETE("/users/:email", s.unsubscribe)
	e.GET("/users/:email/newsletters", s.history)

	e.POST("/generate-newsletter", s.generateAndSend)
	e.POST("/generate-newsletter-content", s.generateContent)
	e.POST("/send-newsletter", s.sendToActive)
	e.POST("/test-email", s.testEmail)
	e.GET("/stats", s.stats)
	e.GET("/newsletters/search", s.search)

	mcp := e.Group("/mcp")
	mcp.GET("/tools", s.listTools)
	mcp.POST("/test-tool", s.testTool)
	mcp.GET("/demo", s.demo)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", map[string]interface{}{"address": addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		fields := map[string]interface{}{
			"method":    req.Method,
			"path":      c.Path(),
			"status":    c.Response().Status,
			"duration":  time.Since(started).String(),
			"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
		}
		if c.Response().Status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields)
		} else {
			s.logger.Debug("request served", fields)
		}
		return nil
	}
}

// withTimeout bounds a handler's work by d while keeping the request's values.
func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
