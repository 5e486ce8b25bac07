package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/david/estate-finder/internal/artifact"
	"github.com/david/estate-finder/internal/auth"
	"github.com/david/estate-finder/internal/db"
	"github.com/david/estate-finder/internal/ingest"
	"github.com/david/estate-finder/internal/models"
)

// PropertyStore is the read side of the database used by the API.
type PropertyStore interface {
	ListProperties(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	GetProperty(ctx context.Context, id string) (*models.PropertyRecord, error)
	SimilarProperties(ctx context.Context, id string, limit int) ([]models.PropertyRecord, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	Stats(ctx context.Context) (*db.Stats, error)
}

// RunFunc executes one full scrape.
type RunFunc func(ctx context.Context) (*ingest.RunResult, error)

type Options struct {
	AllowedOrigins []string
	RunTimeout     time.Duration
}

type Server struct {
	Store       PropertyStore
	Blobs       artifact.BlobStore
	AuthService *auth.Service
	Echo        *echo.Echo
	Run         RunFunc

	runTimeout time.Duration
	logger     *zap.Logger

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
	done      chan struct{}
}

func NewServer(store PropertyStore, blobs artifact.BlobStore, authService *auth.Service, run RunFunc, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := opts.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 90 * time.Minute
	}

	s := &Server{
		Store:       store,
		Blobs:       blobs,
		AuthService: authService,
		Echo:        e,
		Run:         run,
		runTimeout:  runTimeout,
		logger:      logger,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/properties", s.handleListProperties)
	api.GET("/properties/:id", s.handleGetProperty)
	api.GET("/properties/:id/similar", s.handleSimilarProperties)
	api.GET("/runs", s.handleListRuns)
	api.GET("/stats", s.handleGetStats)
	api.GET("/artifacts/latest", s.handleLatestArtifact)

	api.POST("/auth/login", s.handleLogin)

	admin := api.Group("/admin")
	admin.Use(s.AuthService.Middleware)
	admin.POST("/runs", s.handleTriggerRun)
	admin.GET("/jobs/:id", s.handleJobStatus)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCreds):
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		case errors.Is(err, auth.ErrLoginDisabled):
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListProperties(c echo.Context) error {
	params := db.ListParams{
		Priority: c.QueryParam("priority"),
		Location: strings.TrimSpace(c.QueryParam("location")),
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_score"), 64); err == nil && v > 0 {
		params.MinScore = v
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if params.Priority != "" && !validPriority(params.Priority) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "priority must be one of CRITICAL, HIGH, MEDIUM, LOW"})
	}

	result, err := s.Store.ListProperties(c.Request().Context(), params)
	if err != nil {
		s.logger.Error("failed to list properties", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func validPriority(p string) bool {
	switch models.Priority(strings.ToUpper(p)) {
	case models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return true
	}
	return false
}

func (s *Server) handleGetProperty(c echo.Context) error {
	prop, err := s.Store.GetProperty(c.Request().Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		s.logger.Error("failed to get property", zap.String("id", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, prop)
}

func (s *Server) handleSimilarProperties(c echo.Context) error {
	limit := 5
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 50 {
		limit = l
	}
	props, err := s.Store.SimilarProperties(c.Request().Context(), c.Param("id"), limit)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		s.logger.Error("failed to find similar properties", zap.String("id", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if props == nil {
		props = []models.PropertyRecord{}
	}
	return c.JSON(http.StatusOK, props)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	runs, err := s.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleLatestArtifact(c echo.Context) error {
	if s.Blobs == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no artifact store configured"})
	}
	doc, err := artifact.ReadLatest(c.Request().Context(), s.Blobs)
	if errors.Is(err, artifact.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no run artifact yet"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleTriggerRun(c echo.Context) error {
	if s.Run == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scraping is not enabled on this server"})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A scrape run is already running",
			"job_id": job.ID,
		})
	}

	// Detached from the request; the run outlives the 202 response.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), s.runTimeout,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
		done:      make(chan struct{}),
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer close(job.done)
		defer jobCancel()
		log := s.logger.With(zap.String("job_id", jobID))

		result, err := s.Run(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Error("scrape job failed", zap.Error(err))
			return
		}
		job.Status = "completed"
		if result != nil && result.Summary != nil {
			job.Result = map[string]interface{}{
				"run_id":           result.Summary.RunID,
				"properties_found": result.Summary.PropertiesFound,
				"critical_count":   result.Summary.CriticalCount,
				"high_count":       result.Summary.HighCount,
				"failed_sites":     len(result.Summary.FailedSites),
			}
		}
		log.Info("scrape job completed")
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Scrape run started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/jobs/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

// CancelRunningJob stops an in-flight scrape and waits for it to record its
// outcome, or for ctx to end.
func (s *Server) CancelRunningJob(ctx context.Context) {
	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()
	if job == nil || job.done == nil {
		return
	}
	job.Cancel()
	select {
	case <-job.done:
	case <-ctx.Done():
	}
}
