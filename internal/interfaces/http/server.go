// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application
// service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskdesk/taskdesk/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config           ServerConfig
	httpServer       *http.Server
	router           *gin.Engine
	lifecycleService service.LifecycleService
	taskService      service.TaskService
	subtaskService   service.SubtaskService
	workflowService  service.WorkflowService
	reportService    service.ReportService
	logger           Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	lifecycleService service.LifecycleService,
	taskService service.TaskService,
	subtaskService service.SubtaskService,
	workflowService service.WorkflowService,
	reportService service.ReportService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:           config,
		router:           router,
		lifecycleService: lifecycleService,
		taskService:      taskService,
		subtaskService:   subtaskService,
		workflowService:  workflowService,
		reportService:    reportService,
		logger:           logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.lifecycleService, s.taskService, s.subtaskService,
		s.workflowService, s.reportService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		api.POST("/workflows", handlers.CreateWorkflow)
		api.GET("/workflows", handlers.ListWorkflows)
		api.GET("/workflows/:id", handlers.GetWorkflow)

		api.POST("/tasks", handlers.CreateTask)
		api.GET("/tasks", handlers.ListTasks)
		api.GET("/tasks/:id", handlers.GetTask)
		api.POST("/tasks/:id/move", handlers.MoveTask)
		api.GET("/tasks/:id/history/export", handlers.ExportTaskHistory)

		api.POST("/approvals/:id/resolve", handlers.ResolveApproval)

		api.POST("/subtasks/:id/assign", handlers.AssignSubtask)
		api.POST("/subtasks/:id/completion", handlers.ToggleSubtaskCompletion)

		api.POST("/admin/subtasks/repair", handlers.RepairOrphanedSubtasks)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
