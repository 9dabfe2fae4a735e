package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quiltsync/pkg/config"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/models"
)

// RecordReader is the store surface the API serves from
type RecordReader interface {
	Get(ctx context.Context, itemID string) (*models.Record, error)
	List(ctx context.Context, page, pageSize int, sortBy, sortOrder string) ([]models.Record, int, error)
	Search(ctx context.Context, q string, page, pageSize int) ([]models.Record, int, error)
	Stats(ctx context.Context) (*models.Stats, error)
	LastRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// Server exposes synced quilt records over HTTP. Read only.
type Server struct {
	store  RecordReader
	config config.ServerConfig
	logger logger.Logger
	router chi.Router
}

func NewServer(store RecordReader, cfg config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Server{
		store:  store,
		config: cfg,
		logger: log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/records", s.handleListRecords)
	r.Get("/records/search", s.handleSearchRecords)
	r.Get("/records/{item_id}", s.handleGetRecord)

	s.router = r
	return s
}

// Handler returns the configured router, used directly by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("server shutdown failed")
		}
	}()

	s.logger.InfoWithFields("starting API server", map[string]interface{}{
		"addr": addr,
	})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":       "quiltsync",
		"collection": "AIDS Memorial Quilt Records",
		"endpoints": []string{
			"/health",
			"/stats",
			"/records",
			"/records/search",
			"/records/{item_id}",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	runs, err := s.store.LastRuns(r.Context(), 10)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load sync runs")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":       stats,
		"recent_runs": runs,
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	sortBy := r.URL.Query().Get("sort_by")
	sortOrder := r.URL.Query().Get("sort_order")

	records, total, err := s.store.List(r.Context(), page, pageSize, sortBy, sortOrder)
	if err != nil {
		s.logger.WithError(err).Error("record listing failed")
		s.respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	s.respondRecords(w, records, total, page, pageSize)
}

func (s *Server) handleSearchRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	page, pageSize := pageParams(r)
	records, total, err := s.store.Search(r.Context(), q, page, pageSize)
	if err != nil {
		s.logger.WithError(err).Error("record search failed")
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	s.respondRecords(w, records, total, page, pageSize)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")

	rec, err := s.store.Get(r.Context(), itemID)
	if err != nil {
		s.logger.WithError(err).Error("record lookup failed")
		s.respondError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("record not found: %s", itemID))
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) respondRecords(w http.ResponseWriter, records []models.Record, total, page, pageSize int) {
	if records == nil {
		records = []models.Record{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records":   records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
