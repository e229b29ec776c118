package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(s store.Adapter, authEnabled bool, token string) chi.Router {
	h := NewHandler(s)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.FetchNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/by-ids", h.FetchNotesByIDs)
	r.Post("/notes/filter", h.FilterNotes)
	r.Get("/notes/filter-options", h.FilterOptions)
	r.Get("/notes/{id}", h.GetNote)
	r.Patch("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Contexts.
	r.Get("/contexts/stats", h.ContextStats)
	r.Get("/contexts/search", h.SearchContexts)
	r.Get("/contexts/exists", h.ContextExists)
	r.Post("/contexts/rename", h.RenameContext)

	// Semantic search.
	r.Post("/search", h.Search)

	return r
}
