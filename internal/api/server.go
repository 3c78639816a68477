package api

import (
	"context"
	"net/http"

	"gosuperior/domain/core"
	"gosuperior/domain/superior"
	"gosuperior/internal"
	"gosuperior/ports"

	"github.com/gin-gonic/gin"
)

// RunService is what the server needs from the application layer
type RunService interface {
	GetRun(ctx context.Context, id core.RunID) (*superior.Result, error)
	ListRuns(ctx context.Context, limit, offset int) ([]ports.RunSummary, error)
	DeleteRun(ctx context.Context, id core.RunID) error
	Report(ctx context.Context, id core.RunID, renderer ports.RendererPort) ([]byte, error)
}

// Server serves stored estimation runs over HTTP
type Server struct {
	router    *gin.Engine
	service   RunService
	renderers map[string]ports.RendererPort
	exporters map[string]ports.ExporterPort
	logger    *internal.Logger
}

// NewServer creates a server. renderers are keyed by report format
// ("html", "markdown"); exporters by table name.
func NewServer(service RunService, renderers map[string]ports.RendererPort, exporters map[string]ports.ExporterPort, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:    gin.New(),
		service:   service,
		renderers: renderers,
		exporters: exporters,
		logger:    logger,
	}
	s.router.Use(gin.Recovery(), RequestLogger(logger))
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	s.logger.Info("[API] Listening on %s", addr)
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	runs := s.router.Group("/runs")
	runs.GET("", s.HandleListRuns())
	runs.GET("/:id", s.HandleGetRun())
	runs.DELETE("/:id", s.HandleDeleteRun())
	runs.GET("/:id/report", s.HandleRunReport())
	runs.GET("/:id/export/:table", s.HandleRunExport())
}
