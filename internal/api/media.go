package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/noteid"
)

const maxUploadBytes = 50 << 20 // 50 MB

// MediaHandler accepts media uploads and serves stored media files.
type MediaHandler struct {
	media *media.Store
}

// NewMediaHandler creates a handler backed by the managed media directory.
func NewMediaHandler(m *media.Store) *MediaHandler {
	return &MediaHandler{media: m}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the media dir.
func (h *MediaHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	dir := h.media.Dir()
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes media directory")
	}
	return abs, nil
}

// ServeFile handles GET /media/{filename}.
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/media (multipart/form-data, field "file",
// optional field "type" naming the media kind). The stored file is probed
// for dimensions and the resulting attachment metadata is returned; the
// caller is expected to attach it to a note via PUT /api/notes/{id}.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	mediaType := models.MediaType(r.FormValue("type"))
	switch mediaType {
	case "":
		mediaType = models.MediaImage
	case models.MediaImage, models.MediaVideo, models.MediaLivePhoto:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown media type"))
		return
	}

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == string(os.PathSeparator) {
		filename = ""
	}

	uri, err := h.media.SaveReader(file, filename)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to store media"))
		return
	}

	info, err := h.media.Probe(uri)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to probe media"))
		return
	}

	att := models.Attachment{
		ID:        noteid.New(),
		Type:      mediaType,
		URI:       uri,
		Width:     info.Width,
		Height:    info.Height,
		MimeType:  info.MimeType,
		FileSize:  info.FileSize,
		CreatedAt: time.Now().UTC(),
	}
	writeJSON(w, http.StatusCreated, att)
}
