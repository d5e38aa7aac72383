package mockserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	if s.cfg.RateLimit.Enabled {
		r.Use(s.rateLimitMiddleware(s.cfg.RateLimit.RequestsPerMinute))
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/angles/versions", s.handleVersions)

		r.Route("/team", func(r chi.Router) {
			r.Post("/", s.handleCreateTeam)
			r.Get("/", s.handleList(store.KindTeam))
			r.Get("/{id}", s.handleGet(store.KindTeam))
			r.Put("/{id}", s.handleUpdateTeam)
			r.Delete("/{id}", s.handleDelete(store.KindTeam))
		})

		r.Route("/environment", func(r chi.Router) {
			r.Post("/", s.handleCreateEnvironment)
			r.Get("/", s.handleList(store.KindEnvironment))
			r.Get("/{id}", s.handleGet(store.KindEnvironment))
			r.Put("/{id}", s.handleUpdateEnvironment)
			r.Delete("/{id}", s.handleDelete(store.KindEnvironment))
		})

		r.Route("/build", func(r chi.Router) {
			r.Post("/", s.handleCreateBuild)
			r.Get("/", s.handleListBuilds)
			r.Delete("/", s.handleDeleteOldBuilds)
			r.Get("/{id}", s.handleGet(store.KindBuild))
			r.Delete("/{id}", s.handleDelete(store.KindBuild))
			r.Get("/{id}/report", s.handleBuildReport)
			r.Put("/{id}/keep", s.handleSetKeep)
			r.Put("/{id}/artifacts", s.handleAddArtifacts)
		})

		r.Route("/execution", func(r chi.Router) {
			r.Post("/", s.handleCreateExecution)
			r.Get("/{id}", s.handleGet(store.KindExecution))
			r.Delete("/{id}", s.handleDelete(store.KindExecution))
			r.Get("/{id}/history", s.handleExecutionHistory)
		})

		r.Route("/screenshot", func(r chi.Router) {
			r.Post("/", s.handleCreateScreenshot)
			r.Get("/", s.handleListScreenshots)
			r.Get("/views", s.handleScreenshotViews)
			r.Get("/tags", s.handleScreenshotTags)
			r.Get("/grouped/platform", s.handleGroupedByPlatform)
			r.Get("/grouped/tag", s.handleGroupedByTag)
			r.Get("/{id}", s.handleGet(store.KindScreenshot))
			r.Delete("/{id}", s.handleDeleteScreenshot)
			r.Get("/{id}/image", s.handleScreenshotImage)
		})

		r.Route("/baseline", func(r chi.Router) {
			r.Post("/", s.handleSetBaseline)
			r.Get("/", s.handleListBaselines)
			r.Get("/{id}", s.handleGet(store.KindBaseline))
			r.Put("/{id}", s.handleUpdateBaseline)
			r.Delete("/{id}", s.handleDelete(store.KindBaseline))
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}

	origins := s.cfg.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
