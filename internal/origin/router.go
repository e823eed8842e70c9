package origin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/primer/internal/manifest"
)

// NewRouter creates a chi router with the origin routes mounted.
// authEnabled controls whether Bearer token auth is enforced on content
// routes; health probes stay open. events, if non-nil, is mounted at
// GET /events inside the auth group.
func NewRouter(s *Server, authEnabled bool, token string, events http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	r.Group(func(gr chi.Router) {
		gr.Use(AuthMiddleware(authEnabled, token))

		gr.Get("/"+manifest.FileName, s.Registry)
		if events != nil {
			gr.Get("/events", events.ServeHTTP)
		}
		gr.Get("/*", s.File)
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
