package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/sse"
	"github.com/liflux/liflux/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, receives note change events and serves GET /events.
func NewRouter(st store.Store, m *media.Store, broker *sse.Broker, authEnabled bool, token string) chi.Router {
	h := NewHandler(st, broker)
	mh := NewMediaHandler(m)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Search.
	r.Get("/search", h.Search)

	// Media upload (auth-protected). Files are served at GET /media/{filename}
	// outside this router so clients can embed plain URLs.
	r.Post("/media", mh.Upload)

	// SSE endpoint (protected by the same auth middleware).
	if broker != nil {
		r.Method(http.MethodGet, "/events", broker)
	}

	return r
}
