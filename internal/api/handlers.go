package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/liflux/liflux/internal/apperr"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/sse"
	"github.com/liflux/liflux/internal/store"
)

const maxNoteBody = 10 << 20 // 10 MB

// Handler holds API route handlers.
type Handler struct {
	store  store.Store
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil, in which case no
// change events are published.
func NewHandler(st store.Store, broker *sse.Broker) *Handler {
	return &Handler{store: st, broker: broker}
}

func (h *Handler) notify(kind, id string) {
	if h.broker != nil {
		h.broker.PublishNoteEvent(kind, id)
	}
}

// ListNotes handles GET /api/notes. Trashed notes are never listed.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.GetAllNotes(r.Context())
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if r.URL.Query().Get("preview") == "true" {
		previews := make([]models.NotePreview, 0, len(notes))
		for _, n := range notes {
			previews = append(previews, n.Preview())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"notes": previews,
			"total": len(previews),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notes": notes,
		"total": len(notes),
	})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.store.GetNoteByID(r.Context(), id)
	if err != nil {
		slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if note == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBody)

	var req store.CreateNoteParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.store.CreateNote(r.Context(), req)
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.notify(sse.KindCreated, note.ID)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}. Absent fields keep their
// stored values.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBody)
	id := chi.URLParam(r, "id")

	var req store.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.store.UpdateNote(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.notify(sse.KindUpdated, note.ID)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Depending on the configured
// delete policy this either trashes or permanently removes the note;
// unknown ids are a no-op either way.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteNote(r.Context(), id); err != nil {
		slog.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.notify(sse.KindDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	results, err := h.store.SearchNotes(r.Context(), q)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if limit, convErr := strconv.Atoi(r.URL.Query().Get("limit")); convErr == nil && limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}
