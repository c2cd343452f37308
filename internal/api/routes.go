// Package api provides HTTP handlers for the ag3dash server.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"

	"github.com/ag3dash/server/internal/cache"
	"github.com/ag3dash/server/internal/metrics"
	"github.com/ag3dash/server/internal/service"
	"github.com/ag3dash/server/internal/session"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Title         string
	CORSOrigins   []string
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool

	Sessions  *session.Store
	Dashboard *service.DashboardService
	Cache     *cache.Manager
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

type server struct {
	title     string
	sessions  *session.Store
	dashboard *service.DashboardService
	cache     *cache.Manager
	cookies   *sessions.CookieStore
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	s := &server{
		title:     cfg.Title,
		sessions:  cfg.Sessions,
		dashboard: cfg.Dashboard,
		cache:     cfg.Cache,
		cookies:   newCookieStore(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies),
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/", s.homePage)

	// Reference tables, shared by every session
	r.Get("/api/sample-sets", s.sampleSetsHandler)
	r.Get("/api/options", s.optionsHandler)
	r.Get("/api/cache/stats", s.cacheStatsHandler)

	// Session-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/sample-sets", s.sampleSetsPage)
		r.Post("/sample-sets/edit", s.sampleSetsEditForm)
		r.Post("/sample-sets/reset", s.sampleSetsResetForm)
		r.Get("/query-builder", s.queryBuilderPage)
		r.Post("/query-builder/filters", s.queryBuilderFiltersForm)
		r.Post("/query-builder/clear", s.queryBuilderClearForm)
		r.Get("/sampling-locations", s.samplingLocationsPage)

		r.Get("/api/session", s.sessionHandler)
		r.Put("/api/session/selection", s.selectionHandler)
		r.Post("/api/session/reset", s.resetHandler)
		r.Put("/api/session/filters/{dimension}", s.filterHandler)
		r.Delete("/api/session/filters", s.clearFiltersHandler)
		r.Get("/api/query", s.queryHandler)
		r.Get("/api/summary", s.summaryHandler)
		r.Get("/api/locations", s.locationsHandler)
		r.Get("/api/map.png", s.mapHandler)
		r.Get("/api/samples/export.xlsx", s.exportHandler)
	})

	return r
}
