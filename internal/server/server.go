// Package server exposes the run manager over HTTP and WebSocket. It is
// one of the two progress-stream consumers shipped with the service; the
// other is the simrun CLI.
package server

import (
	"github.com/beamlab/erdsim/internal/config"
	"github.com/beamlab/erdsim/internal/logging"
	"github.com/beamlab/erdsim/internal/monitoring"
	"github.com/beamlab/erdsim/internal/runner"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the HTTP router and its dependencies.
type Server struct {
	router  *gin.Engine
	manager *runner.Manager
	logger  *logging.Logger
}

// NewServer creates a server instance around an existing run manager.
func NewServer(cfg *config.Config, manager *runner.Manager, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(metrics.Middleware())

	s := &Server{
		router:  router,
		manager: manager,
		logger:  logger,
	}

	router.GET("/", s.Root)
	router.GET("/health", s.Health)

	router.GET("/runs", s.ListRuns)
	router.POST("/runs", s.LaunchRun)
	router.GET("/runs/:id", s.GetRun)
	router.POST("/runs/:id/stop", s.StopRun)
	router.POST("/runs/:id/collect", s.CollectRun)
	router.DELETE("/runs/:id", s.DeleteRun)
	router.GET("/runs/:id/stream", s.StreamRun)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	s.logger.Info("starting erdsim service on " + addr)
	return s.router.Run(addr)
}

// Close stops every live simulation process.
func (s *Server) Close() {
	s.manager.StopAll()
}
