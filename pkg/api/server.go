// Package api exposes the pipeline's HTTP surface: the ingest gateway,
// the phase-2 admin trigger, and a health check, all served over gin.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ciaranglansford/civic-quant/pkg/database"
	"github.com/ciaranglansford/civic-quant/pkg/metrics"
	"github.com/ciaranglansford/civic-quant/pkg/phase2"
	"github.com/ciaranglansford/civic-quant/pkg/services"
	"github.com/ciaranglansford/civic-quant/pkg/version"
)

// Phase2Runner runs one phase-2 batch and reports its summary. *phase2.Scheduler
// satisfies this.
type Phase2Runner interface {
	RunOnce(ctx context.Context) (phase2.RunSummary, error)
}

// Server wires the ingest service, the phase-2 admin trigger, and the
// database health check behind a gin router.
type Server struct {
	ingest     *services.IngestService
	phase2     Phase2Runner
	db         *sql.DB
	adminToken string
	router     *gin.Engine
}

// NewServer builds a Server and registers its routes.
func NewServer(ingest *services.IngestService, phase2Runner Phase2Runner, db *sql.DB, adminToken string) *Server {
	s := &Server{
		ingest:     ingest,
		phase2:     phase2Runner,
		db:         db,
		adminToken: adminToken,
		router:     gin.Default(),
	}
	s.router.Use(requestIDMiddleware())
	s.registerRoutes()
	return s
}

// Router returns the underlying gin engine for router.Run.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.POST("/ingest", s.handleIngest)
	s.router.POST("/admin/process/phase2-extractions", s.handleAdminPhase2)
}

// requestIDMiddleware stamps every request with an X-Request-ID header,
// generating one when the caller didn't supply it — the same
// header-stamping shape the pipeline's upstream teacher uses for its own
// cross-cutting middleware, just implemented against gin instead of echo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": dbHealth, "error": err.Error(), "version": version.Full()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": dbHealth, "version": version.Full()})
}
