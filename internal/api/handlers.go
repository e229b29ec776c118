package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
)

// Handler holds API route handlers over the storage adapter.
type Handler struct {
	store store.Adapter
}

// NewHandler creates a new Handler.
func NewHandler(s store.Adapter) *Handler {
	return &Handler{store: s}
}

// splitList parses a comma-separated query parameter into a slice,
// dropping empty segments.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func noteTypePtr(s *string) *models.NoteType {
	if s == nil {
		return nil
	}
	t := models.NoteType(*s)
	return &t
}

func statusPtr(s *string) *models.NoteStatus {
	if s == nil {
		return nil
	}
	st := models.NoteStatus(*s)
	return &st
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note and link its contexts
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.store.CreateNote(r.Context(), store.CreateNoteParams{
		ID:         req.ID,
		Content:    req.Content,
		KeyContext: req.KeyContext,
		Contexts:   req.Contexts,
		Tags:       req.Tags,
		NoteType:   noteTypePtr(req.NoteType),
		Deadline:   req.Deadline,
		Status:     statusPtr(req.Status),
	})
	if err != nil {
		// A duplicate id is the one persistence failure the client caused.
		if errors.Is(err, apperr.ErrPersistence) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
			return
		}
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	notes, err := h.store.FetchNotesByIDs(r.Context(), []string{id})
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	if len(notes) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, notes[0])
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Apply a partial update to a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.store.UpdateNote(r.Context(), id, store.NotePatch{
		Content:        req.Content,
		KeyContext:     req.KeyContext,
		Contexts:       req.Contexts,
		Tags:           req.Tags,
		NoteType:       noteTypePtr(req.NoteType),
		Deadline:       req.Deadline,
		Status:         statusPtr(req.Status),
		Embedding:      req.Embedding,
		EmbeddingModel: req.EmbeddingModel,
	})
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note and its context links
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FetchNotes handles GET /api/notes.
//
//	@Summary		Fetch notes by key context and/or context names
//	@Tags			notes
//	@Produce		json
//	@Param			key_context	query		string	false	"Key context"
//	@Param			contexts	query		string	false	"Comma-separated context names"
//	@Param			method		query		string	false	"Context combination"	Enums(AND, OR)
//	@Success		200			{object}	FetchNotesResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) FetchNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notes, err := h.store.FetchNotes(r.Context(), store.FetchParams{
		KeyContext: q.Get("key_context"),
		Contexts:   splitList(q.Get("contexts")),
		Method:     store.FetchMethod(q.Get("method")),
	})
	if err != nil {
		writeError(w, "fetch notes", err)
		return
	}
	writeJSON(w, http.StatusOK, FetchNotesResponse{Notes: notes})
}

// FetchNotesByIDs handles GET /api/notes/by-ids.
//
//	@Summary		Fetch notes by id list
//	@Tags			notes
//	@Produce		json
//	@Param			ids	query		string	true	"Comma-separated note ids"
//	@Success		200	{object}	FetchNotesResponse
//	@Security		BearerAuth
//	@Router			/notes/by-ids [get]
func (h *Handler) FetchNotesByIDs(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.FetchNotesByIDs(r.Context(), splitList(r.URL.Query().Get("ids")))
	if err != nil {
		writeError(w, "fetch notes by ids", err)
		return
	}
	writeJSON(w, http.StatusOK, FetchNotesResponse{Notes: notes})
}

// FilterNotes handles POST /api/notes/filter.
//
//	@Summary		Filter notes across contexts, tags, type, status, and date ranges
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FilterRequest	true	"Filter criteria (all optional)"
//	@Success		200		{object}	store.FilterResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/filter [post]
func (h *Handler) FilterNotes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.store.FilterNotes(r.Context(), &req)
	if err != nil {
		writeError(w, "filter notes", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FilterOptions handles GET /api/notes/filter-options.
//
//	@Summary		List the distinct filterable values currently in use
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	store.FilterOptions
//	@Security		BearerAuth
//	@Router			/notes/filter-options [get]
func (h *Handler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.store.GetFilterOptions(r.Context())
	if err != nil {
		writeError(w, "filter options", err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// ContextStats handles GET /api/contexts/stats.
//
//	@Summary		Paginated context usage statistics
//	@Tags			contexts
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	store.ContextStatsPage
//	@Security		BearerAuth
//	@Router			/contexts/stats [get]
func (h *Handler) ContextStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	page, err := h.store.FetchContextStats(r.Context(), limit, offset)
	if err != nil {
		writeError(w, "context stats", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SearchContexts handles GET /api/contexts/search.
//
//	@Summary		Autocomplete context names by substring
//	@Tags			contexts
//	@Produce		json
//	@Param			q		query		string	true	"Substring to match"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	ContextSearchResponse
//	@Security		BearerAuth
//	@Router			/contexts/search [get]
func (h *Handler) SearchContexts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	contexts, err := h.store.SearchContexts(r.Context(), q.Get("q"), limit)
	if err != nil {
		writeError(w, "search contexts", err)
		return
	}
	writeJSON(w, http.StatusOK, ContextSearchResponse{Contexts: contexts})
}

// ContextExists handles GET /api/contexts/exists.
//
//	@Summary		Probe whether a context name exists
//	@Tags			contexts
//	@Produce		json
//	@Param			name	query		string	true	"Context name"
//	@Success		200		{object}	ContextExistsResponse
//	@Security		BearerAuth
//	@Router			/contexts/exists [get]
func (h *Handler) ContextExists(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'name' is required"))
		return
	}
	writeJSON(w, http.StatusOK, ContextExistsResponse{
		Name:   name,
		Exists: h.store.ContextExists(r.Context(), name),
	})
}

// RenameContext handles POST /api/contexts/rename.
//
//	@Summary		Rename a context, merging it when the target already exists
//	@Tags			contexts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameContextRequest	true	"Old and new names"
//	@Success		200		{object}	store.RenameResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contexts/rename [post]
func (h *Handler) RenameContext(w http.ResponseWriter, r *http.Request) {
	var req RenameContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.store.RenameContext(r.Context(), req.OldName, req.NewName)
	if err != nil {
		writeError(w, "rename context", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles POST /api/search.
//
//	@Summary		Semantic similarity search over a precomputed query vector
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Query vector, threshold, limit"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}
	results, err := h.store.SemanticSearch(r.Context(), req.Vector, req.Threshold, req.Limit)
	if err != nil {
		writeError(w, "semantic search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
