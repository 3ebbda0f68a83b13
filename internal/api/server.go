// Package api provides the REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fidde/codesnip/internal/auth"
	"github.com/fidde/codesnip/internal/backup"
	"github.com/fidde/codesnip/internal/metrics"
	"github.com/fidde/codesnip/internal/snippets"
	"github.com/fidde/codesnip/pkg/models"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "codesnip_session"

const maxBodyBytes = 1 << 20

// Config holds HTTP server settings.
type Config struct {
	Addr         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// AdminToken guards /api/v1/admin; empty disables those routes.
	AdminToken string

	// RateLimit and RateBurst bound auth requests per client IP.
	RateLimit float64
	RateBurst int

	SessionTTL    time.Duration
	SecureCookies bool
}

// Server is the REST API server.
type Server struct {
	cfg      Config
	snippets *snippets.Service
	auth     *auth.Service
	backups  *backup.Service
	limiter  *auth.RateLimiter
	logger   *slog.Logger

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new API server. backups may be nil, which disables the
// admin routes.
func NewServer(cfg Config, snippetSvc *snippets.Service, authSvc *auth.Service, backups *backup.Service, logger *slog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		snippets: snippetSvc,
		auth:     authSvc,
		backups:  backups,
		limiter:  auth.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:   logger,
		router:   chi.NewRouter(),
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(metrics.Middleware)

	s.router.Get("/health", s.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler())
	s.router.Get("/robots.txt", s.robots)
	s.router.Get("/sitemap.xml", s.sitemap)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identify)

		r.Get("/health", s.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimit).Post("/register", s.register)
			r.With(s.rateLimit).Post("/login", s.login)
			r.With(s.requireUser).Post("/logout", s.logout)
			r.With(s.requireUser).Get("/me", s.me)
		})

		r.Get("/languages", s.listLanguages)
		r.Post("/complexity", s.analyze)

		r.Route("/snippets", func(r chi.Router) {
			r.Get("/", s.listSnippets)
			r.With(s.requireUser).Post("/", s.createSnippet)
			r.Get("/{slug}", s.getSnippet)
			r.With(s.requireUser).Put("/{slug}", s.updateSnippet)
			r.With(s.requireUser).Delete("/{slug}", s.deleteSnippet)
			r.Get("/{slug}/stats", s.snippetStats)
		})

		r.Get("/tags", s.listTags)
		r.Get("/tags/{slug}", s.getTag)
		r.Get("/users/{username}", s.getProfile)

		if s.backups != nil && s.cfg.AdminToken != "" {
			r.Route("/admin/backups", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/", s.listBackups)
				r.Post("/", s.createBackup)
				r.Get("/{name}", s.getBackup)
				r.Post("/{name}/restore", s.restoreBackup)
				r.Delete("/{name}", s.deleteBackup)
			})
		}
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// PaginationParams contains pagination parameters from query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps a paginated response with metadata.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// parsePaginationParams extracts pagination parameters from request.
// Defaults: limit=12, offset=0, max_limit=100
func parsePaginationParams(r *http.Request) PaginationParams {
	limit := models.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, models.MaxListLimit)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{Limit: limit, Offset: offset}
}

func paginated[T any](items []T, total int, params PaginationParams) PaginatedResponse {
	if items == nil {
		items = []T{}
	}
	return PaginatedResponse{
		Data:    items,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: params.Offset+len(items) < total,
	}
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps a service error to a status code. Unexpected errors are
// logged and reported generically.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
		return
	}

	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, capitalize(err.Error()))
	case errors.Is(err, models.ErrForbidden):
		respondError(w, http.StatusForbidden, capitalize(err.Error()))
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrSlugTaken),
		errors.Is(err, models.ErrBackupExists),
		errors.Is(err, models.ErrTooManyBackups):
		respondError(w, http.StatusConflict, capitalize(err.Error()))
	case errors.Is(err, models.ErrInvalidBackupName):
		respondError(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, models.ErrBackupTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, capitalize(err.Error()))
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return models.NewValidationError("body", "Invalid request body: "+err.Error())
	}
	return nil
}
