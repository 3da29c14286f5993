// Package api provides the HTTP and WebSocket transport for StreamWeaver:
// SSE streaming, status/replay/close endpoints, and an optional Prometheus
// scrape endpoint.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/service"
	"github.com/codeready-toolchain/streamweaver/pkg/version"
)

// Server is the HTTP API server fronting a Service.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	svc        *service.Service
}

// NewServer builds a Server and registers all routes.
func NewServer(cfg *config.Config, svc *service.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(corsMiddleware(cfg.Server.AllowedWSOrigins))

	s := &Server{
		router: router,
		cfg:    cfg,
		svc:    svc,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	s.router.GET("/stream/:sessionId", s.streamHandler)
	s.router.GET("/stream/:sessionId/status", s.statusHandler)
	s.router.POST("/stream/:sessionId/close", s.closeHandler)
	s.router.GET("/stream/:sessionId/replay", s.replayHandler)

	s.router.GET("/ws/:sessionId", s.wsHandler)

	if s.cfg.Metrics.Enabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// Start serves on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener serves on a pre-created listener — used by tests that
// need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	stats := s.cfg.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"version":            version.Full(),
		"sessionStore":       stats.SessionStore,
		"backpressurePolicy": stats.BackpressurePolicy,
		"batchingEnabled":    stats.BatchingEnabled,
		"metricsEnabled":     stats.MetricsEnabled,
	})
}
