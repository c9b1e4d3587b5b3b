package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/shoplist/shoplist/internal/auth"
	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/jobs"
	"github.com/shoplist/shoplist/internal/service"
	"github.com/shoplist/shoplist/internal/session"
)

type middlewareFunc func(http.Handler) http.Handler

// chainMiddleware wraps h so the first middleware is the outermost.
func chainMiddleware(h http.Handler, middleware ...middlewareFunc) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

type ServerOptions struct {
	// Sessions defaults to the database-backed registry.
	Sessions session.Store
	// Organizer defaults to an OrganizeService without a classifier.
	Organizer *service.OrganizeService
	// OrganizeQueue enables ?async=true on the organize route when set.
	OrganizeQueue *jobs.Queue

	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

type Server struct {
	db       database.DB
	authSvc  *auth.Service
	sessions session.Store

	stores    *service.StoreService
	sections  *service.SectionService
	items     *service.ItemService
	organizer *service.OrganizeService
	queue     *jobs.Queue

	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(db database.DB, authSvc *auth.Service, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewDBStore(db)
	}
	organizer := opts.Organizer
	if organizer == nil {
		organizer = service.NewOrganizeService(db, nil, service.OrganizeOptions{Logger: logger})
	}
	s := &Server{
		db:        db,
		authSvc:   authSvc,
		sessions:  sessions,
		stores:    service.NewStoreService(db),
		sections:  service.NewSectionService(db),
		items:     service.NewItemService(db),
		organizer: organizer,
		queue:     opts.OrganizeQueue,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.routes(opts.Gatherer)

	metrics := defaultRouteMetrics()
	if opts.Registerer != nil {
		metrics = newRouteMetrics(opts.Registerer)
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	s.handler = chainMiddleware(captureMatchedRoute(s.mux),
		requestIDMiddleware,
		requestLoggingMiddleware(logger),
		func(next http.Handler) http.Handler { return instrumentRequests(metrics, next) },
		requestTracingMiddleware,
		requestBodyLimitMiddleware(maxBody),
		newCORS(opts.CORSAllowedOrigins).Handler,
		func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) },
	)
	return s
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metricsHandler(gatherer))

	// Auth
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.requireAuth(s.handleLogout))
	s.mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleGetCurrentUser))

	// Stores
	s.mux.HandleFunc("POST /api/stores", s.requireAuth(s.handleCreateStore))
	s.mux.HandleFunc("GET /api/stores", s.requireAuth(s.handleListStores))
	s.mux.HandleFunc("PUT /api/stores/{store_id}", s.requireAuth(s.handleUpdateStore))
	s.mux.HandleFunc("DELETE /api/stores/{store_id}", s.requireAuth(s.handleDeleteStore))

	// Sections
	s.mux.HandleFunc("GET /api/stores/{store_id}/sections", s.requireAuth(s.handleListSections))
	s.mux.HandleFunc("POST /api/stores/{store_id}/sections", s.requireAuth(s.handleCreateSection))
	s.mux.HandleFunc("PUT /api/stores/{store_id}/sections/reorder", s.requireAuth(s.handleReorderSections))
	s.mux.HandleFunc("PUT /api/sections/{id}", s.requireAuth(s.handleUpdateSection))
	s.mux.HandleFunc("DELETE /api/sections/{id}", s.requireAuth(s.handleDeleteSection))
	s.mux.HandleFunc("PUT /api/sections/{id}/move", s.requireAuth(s.handleMoveSection))

	// Items
	s.mux.HandleFunc("GET /api/items", s.requireAuth(s.handleListItems))
	s.mux.HandleFunc("POST /api/items", s.requireAuth(s.handleCreateItem))
	s.mux.HandleFunc("PUT /api/items/{id}", s.requireAuth(s.handleRenameItem))
	s.mux.HandleFunc("DELETE /api/items/{id}", s.requireAuth(s.handleDeleteItem))
	s.mux.HandleFunc("PUT /api/items/{id}/checked", s.requireAuth(s.handleSetItemChecked))
	s.mux.HandleFunc("PUT /api/items/{id}/move", s.requireAuth(s.handleMoveItem))

	// Organize
	s.mux.HandleFunc("POST /api/stores/{store_id}/organize", s.requireAuth(s.handleOrganize))
	s.mux.HandleFunc("GET /api/organize-jobs/{id}", s.requireAuth(s.handleGetOrganizeJob))
}

func (s *Server) requireAuth(fn http.HandlerFunc) http.HandlerFunc {
	return auth.Middleware(s.authSvc, s.sessions)(fn).ServeHTTP
}
