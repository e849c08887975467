// Package server exposes the reader API over a CBETA Bookcase: catalog
// search, navigation trees, work metadata, rendered scrolls, gaiji lookup
// and the per-reader user-data store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fayinlab/bodhicanon/core/cache"
	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/nav"
	"github.com/fayinlab/bodhicanon/core/render"
	"github.com/fayinlab/bodhicanon/internal/logging"
	"github.com/fayinlab/bodhicanon/internal/userdata"
)

// Config holds server configuration.
type Config struct {
	Host      string
	Port      int
	Origins   []string // allowed CORS origins
	CacheSize int      // rendered-document cache entries, 0 disables
	Version   string
}

// Server is the reader API server.
type Server struct {
	cfg        Config
	index      *nav.Index
	renderer   *render.Renderer
	gaiji      *gaiji.Resolver
	store      *userdata.Store
	cache      *cache.RenderCache
	router     chi.Router
	httpServer *http.Server
}

// New assembles a server over an already-built navigation index. The
// gaiji resolver feeds the renderer and the lookup endpoint; store holds
// the reader's favorites, positions, notes and preferences.
func New(cfg Config, index *nav.Index, res *gaiji.Resolver, store *userdata.Store) *Server {
	s := &Server{
		cfg:      cfg,
		index:    index,
		renderer: render.New(render.Options{Gaiji: res}),
		gaiji:    res,
		store:    store,
	}
	if cfg.CacheSize > 0 {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.MaxSize = cfg.CacheSize
		s.cache = cache.NewRenderCache(cacheCfg)
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(logging.CombinedMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(securityHeaders)

	origins := s.cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/info", s.handleInfo)
	r.Get("/api/catalog", s.handleCatalog)
	r.Get("/api/nav/canon", s.handleCanonTree)
	r.Get("/api/nav/bulei", s.handleCategoryTree)
	r.Get("/api/works/{work}", s.handleWorkInfo)
	r.Get("/api/content/{work}/{scroll}", s.handleContent)
	r.Get("/api/gaiji/{code}", s.handleGaiji)

	if s.store != nil {
		r.Get("/api/favorites", s.handleFavoritesList)
		r.Put("/api/favorites", s.handleFavoritesReplace)
		r.Post("/api/favorites", s.handleFavoriteAdd)
		r.Delete("/api/favorites/{work}", s.handleFavoriteRemove)

		r.Get("/api/positions", s.handlePositionsList)
		r.Get("/api/positions/{work}", s.handlePositionGet)
		r.Put("/api/positions/{work}", s.handlePositionSave)

		r.Get("/api/notes", s.handleNotesList)
		r.Get("/api/notes/{work}", s.handleNotesList)
		r.Post("/api/notes/{work}", s.handleNoteAdd)
		r.Delete("/api/notes/id/{id}", s.handleNoteDelete)

		r.Get("/api/preferences", s.handlePreferencesGet)
		r.Put("/api/preferences", s.handlePreferencesPut)
		r.Patch("/api/preferences", s.handlePreferencesPatch)
	}

	return r
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured host and port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logging.ServerStartup("reader_api", "http", s.cfg.Port,
		"bookcase", s.index.Dir(),
		"works", s.index.WorkCount())
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
