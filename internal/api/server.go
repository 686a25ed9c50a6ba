package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"

	"github.com/clipsight/clipsight/internal/config"
	"github.com/clipsight/clipsight/internal/db"
	"github.com/clipsight/clipsight/internal/models"
	"github.com/clipsight/clipsight/internal/repository"
)

// JobStore is the progress-store surface the handlers use.
type JobStore interface {
	Claim(ctx context.Context, job *models.DetectionJob) (*models.DetectionJob, bool, error)
	Get(ctx context.Context, videoID uuid.UUID) (*models.DetectionJob, error)
	Put(ctx context.Context, job *models.DetectionJob) error
}

// TaskQueue is the enqueue surface of the job queue.
type TaskQueue interface {
	EnqueueUnique(taskType string, payload interface{}, uniqueID string, opts ...asynq.Option) (string, error)
}

// VideoStore is the video-repository surface the handlers use.
type VideoStore interface {
	GetByID(id uuid.UUID) (*models.Video, error)
	List(limit, offset int) ([]*models.Video, int, error)
	Create(video *models.Video) error
}

type Server struct {
	config        *config.Config
	db            *db.DB
	videoRepo     VideoStore
	highlightRepo *repository.HighlightRepository
	settingsRepo  *repository.SettingsRepository
	jobStore      JobStore
	jobQueue      TaskQueue
	wsHub         *WSHub
	triggerLimit  *rate.Limiter
	router        *http.ServeMux
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(cfg *config.Config, database *db.DB, jobStore JobStore, jobQueue TaskQueue) *Server {
	perMin := cfg.TriggerRatePerMin
	if perMin <= 0 {
		perMin = 30
	}

	s := &Server{
		config:        cfg,
		db:            database,
		videoRepo:     repository.NewVideoRepository(database.DB),
		highlightRepo: repository.NewHighlightRepository(database.DB),
		settingsRepo:  repository.NewSettingsRepository(database.DB),
		jobStore:      jobStore,
		jobQueue:      jobQueue,
		wsHub:         NewWSHub(),
		triggerLimit:  rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
		router:        http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) VideoRepo() VideoStore {
	return s.videoRepo
}

func (s *Server) HighlightRepo() *repository.HighlightRepository {
	return s.highlightRepo
}

func (s *Server) SettingsRepo() *repository.SettingsRepository {
	return s.settingsRepo
}

func (s *Server) setupRoutes() {
	// Public
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /api/v1/status", s.handleStatus)

	// WebSocket
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	// Videos
	s.router.HandleFunc("GET /api/v1/videos", s.handleListVideos)
	s.router.HandleFunc("POST /api/v1/videos", s.handleCreateVideo)
	s.router.HandleFunc("GET /api/v1/videos/{id}", s.handleGetVideo)

	// Detection
	s.router.HandleFunc("POST /api/v1/videos/{id}/detect", s.handleTriggerDetect)
	s.router.HandleFunc("GET /api/v1/videos/{id}/detect/progress", s.handleDetectProgress)
	s.router.HandleFunc("DELETE /api/v1/videos/{id}/detect", s.handleCancelDetect)

	// Highlights
	s.router.HandleFunc("GET /api/v1/videos/{id}/highlights", s.handleListHighlights)
	s.router.HandleFunc("GET /api/v1/highlights/{id}", s.handleGetHighlight)
	s.router.HandleFunc("PATCH /api/v1/highlights/{id}", s.handleUpdateHighlight)
	s.router.HandleFunc("DELETE /api/v1/highlights/{id}", s.handleDeleteHighlight)

	// Settings (runtime-tunable detection defaults)
	s.router.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	s.router.HandleFunc("PUT /api/v1/settings", s.handleUpdateSettings)
}

// ──────────────────── Helpers ────────────────────

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, Response{Success: false, Error: message})
}

func (s *Server) Start(addr string) error {
	// Wrap router with global middleware: security headers → CORS → handler
	handler := s.securityHeadersMiddleware(s.corsMiddleware(s.router))
	return http.ListenAndServe(addr, handler)
}

// Handler exposes the middleware-wrapped router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.securityHeadersMiddleware(s.corsMiddleware(s.router))
}

// securityHeadersMiddleware adds standard security headers to all responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS preflight and response headers globally.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
