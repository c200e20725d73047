// Package http exposes the document lifecycle operations over JSON.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// HeaderActorID carries the caller's identity. Authentication happens
// upstream; the value only scopes filesystem access.
const HeaderActorID = "X-Actor-ID"

// Documents is the orchestrator surface the server calls.
type Documents interface {
	UpdateEmbeddings(ctx context.Context, workspace *ledger.Workspace, adds, deletes []string, actorID string) (documents.AddResult, error)
	RemoveDocuments(ctx context.Context, workspace *ledger.Workspace, paths []string, actorID string) bool
	Content(ctx context.Context, docID, actorID string) (string, error)
	UploadToWorkspaces(ctx context.Context, slugs []string, location, actorID string) (documents.UploadResult, error)
	CreateFolder(ctx context.Context, actorID, name string) (string, error)
	MoveEntries(ctx context.Context, actorID string, moves []documents.Move) (documents.MoveResult, error)
}

// Ledger is the subset of *ledger.Ledger the server reads and updates directly.
type Ledger interface {
	CreateWorkspace(ctx context.Context, slug, name string) (*ledger.Workspace, error)
	WorkspaceBySlug(ctx context.Context, slug string) *ledger.Workspace
	ForWorkspace(ctx context.Context, workspaceID int64) []ledger.Document
	Update(ctx context.Context, id int64, attrs ledger.Attrs) (ledger.UpdateResult, error)
}

// Server provides HTTP endpoints for docledger.
type Server struct {
	echo    *echo.Echo
	docs    Documents
	ledger  Ledger
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MeterProvider overrides the global OpenTelemetry meter provider.
	MeterProvider metric.MeterProvider
}

// NewServer creates a new HTTP server.
func NewServer(docs Documents, l Ledger, logger *zap.Logger, cfg *Config) (*Server, error) {
	if docs == nil {
		return nil, fmt.Errorf("documents service cannot be nil")
	}
	if l == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
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

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	metrics := NewHTTPMetrics(logger, cfg.MeterProvider)
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Set(failureKey, err)
				c.Error(err)
			}

			logger.Info("http request",
				append(logging.ContextFields(c.Request().Context()),
					zap.String("method", c.Request().Method),
					zap.String("uri", c.Request().RequestURI),
					zap.Int("status", c.Response().Status),
					zap.Duration("duration", time.Since(start)),
				)...,
			)
			return nil
		}
	})

	s := &Server{
		echo:    e,
		docs:    docs,
		ledger:  l,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}
	s.registerRoutes()
	return s, nil
}

// requestContext copies the request id and actor into the request context so
// downstream logs carry them.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		if actor := req.Header.Get(HeaderActorID); actor != "" {
			ctx = logging.WithActor(ctx, actor)
		}
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/workspaces", s.handleCreateWorkspace)
	v1.GET("/workspaces/:slug/documents", s.handleListDocuments)
	v1.POST("/workspaces/:slug/documents", s.handleUpdateEmbeddings)
	v1.DELETE("/workspaces/:slug/documents", s.handleRemoveDocuments)
	v1.PATCH("/documents/:id", s.handleUpdateDocument)
	v1.GET("/documents/:docId/content", s.handleContent)
	v1.POST("/documents/upload", s.handleUpload)
	v1.POST("/files/folder", s.handleCreateFolder)
	v1.POST("/files/move", s.handleMove)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
