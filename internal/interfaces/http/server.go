// Package http provides the HTTP adapter for the approval engine. It is a
// thin layer translating requests into engine and repository calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expensio/expense-approval/internal/auth"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	issuer     *auth.TokenIssuer
	logger     *zap.Logger
}

// NewServer creates a new HTTP server around the given handlers
func NewServer(config ServerConfig, handlers *Handlers, issuer *auth.TokenIssuer, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		issuer:   issuer,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// requestIDMiddleware tags every request with an id for log correlation
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// loggingMiddleware logs every request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("latency", time.Since(start).String()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)
	s.router.POST("/signup", s.handlers.Signup)
	s.router.POST("/token", s.handlers.Login)

	authed := s.router.Group("/", auth.Middleware(s.issuer))
	{
		authed.POST("/users", auth.RequireAdmin(), s.handlers.CreateUser)
		authed.POST("/expenses", s.handlers.SubmitExpense)
		authed.GET("/expenses/user/:user_id", s.handlers.ListUserExpenses)
		authed.GET("/approvals/user/:user_id/pending", s.handlers.ListPendingApprovals)
		authed.POST("/approvals/:expense_id/decision", s.handlers.MakeDecision)
		authed.POST("/ocr/receipt", s.handlers.ParseReceipt)
		authed.GET("/reports/company/:company_id/expenses", auth.RequireAdmin(), s.handlers.ExportCompanyReport)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
