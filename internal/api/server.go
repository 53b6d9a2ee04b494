package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/skillbridge/review-engine/internal/config"
	"github.com/skillbridge/review-engine/internal/engine"
	"github.com/skillbridge/review-engine/internal/policy"
	"github.com/skillbridge/review-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	engine         engine.Engine
	policies       *policy.Catalog
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	eng engine.Engine,
	policies *policy.Catalog,
	repo storage.Repository,
) *Server {
	s := &Server{
		config:         cfg,
		engine:         eng,
		policies:       policies,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Eligibility resolution and sharing, per student document
		r.Route("/students/{studentID}/documents/{docType}/{docID}", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("reviews:read")).Get("/mentors", s.handleResolveMentors)
			r.With(s.authMiddleware.RequirePermission("reviews:write")).Post("/share", s.handleShareDocument)
		})

		// Review requests
		r.Route("/reviews", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("reviews:read")).Get("/", s.handleListReviews)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("reviews:read")).Get("/", s.handleGetReview)
				r.With(s.authMiddleware.RequirePermission("reviews:write")).Post("/verdict", s.handleSubmitVerdict)
				r.With(s.authMiddleware.RequirePermission("reviews:admin")).Delete("/", s.handleReleaseClaim)
				r.With(s.authMiddleware.RequirePermission("reviews:read")).Get("/watch", s.handleWatchReview)
			})
		})

		// Review policies
		r.Route("/policies", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("reviews:read")).Get("/", s.handleListPolicies)
			r.With(s.authMiddleware.RequirePermission("reviews:read")).Get("/{type}", s.handleGetPolicy)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
