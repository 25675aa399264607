package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aparcar/buildboard/internal/config"
	"github.com/aparcar/buildboard/internal/db"
	"github.com/aparcar/buildboard/internal/logging"
	"github.com/aparcar/buildboard/internal/models"
	"github.com/aparcar/buildboard/internal/report"
)

// Server holds the API server components
type Server struct {
	db     *db.DB
	config *config.Config
	cache  *report.Cache
	router *gin.Engine
	http   *http.Server
	now    func() time.Time
}

// NewServer creates a new API server
func NewServer(database *db.DB, cfg *config.Config, cache *report.Cache) *Server {
	s := &Server{
		db:     database,
		config: cfg,
		cache:  cache,
		now:    time.Now,
	}

	// Setup router
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery(), requestLogger())
	s.setupRoutes()
	s.setupWebRoutes()

	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/build-requests", s.handleCreateBuildRequests)
		v1.GET("/build-requests/:id", s.handleGetBuildRequest)
		v1.GET("/reports/builders", s.handleBuildersReport)
		v1.GET("/reports/builders/:buildername", s.handleBuilderReport)
		v1.GET("/stats/runtime", s.handleRuntimeStats)
		v1.GET("/stats/results", s.handleResultStats)
		v1.GET("/stats/waittimes", s.handleWaitTimes)
	}

	// Health check
	s.router.GET("/health", s.handleHealth)
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start() error {
	logging.Log.WithField("addr", s.http.Addr).Info("starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Log.WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("duration", time.Since(start)).
			Debug("request")
	}
}

// handleCreateBuildRequests handles POST /api/v1/build-requests
func (s *Server) handleCreateBuildRequests(c *gin.Context) {
	var reqs []*models.BuildRequest

	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no build requests given"})
		return
	}

	if err := s.db.InsertBuildRequests(c.Request.Context(), reqs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to save build requests: %v", err)})
		return
	}

	// Stored reports no longer reflect the data
	s.cache.Reset()

	c.JSON(http.StatusCreated, gin.H{"inserted": len(reqs)})
}

// handleGetBuildRequest handles GET /api/v1/build-requests/:id
func (s *Server) handleGetBuildRequest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid build request id"})
		return
	}

	req, err := s.db.GetBuildRequest(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Build request not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get build request"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"build_request": req,
		"duration":      req.Duration(),
		"wait_time":     req.WaitTime(),
		"run_time":      req.RunTime(),
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	counts, err := s.db.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"time":           s.now().Unix(),
		"build_requests": total,
		"by_status":      counts,
		"cached_reports": s.cache.Len(),
	})
}
