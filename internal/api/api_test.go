package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/testutil"
)

// testEnv sets up a temp data root, document store, and router for testing.
// An empty authToken means disabled auth.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	st, m := testutil.DocumentEnv(t)
	return NewRouter(st, m, nil, authToken != "", authToken)
}

func createNote(t *testing.T, router http.Handler, content string) models.Note {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"content": content})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode created note: %v", err)
	}
	return n
}

func TestCreateAndGetNote(t *testing.T) {
	router := testEnv(t, "")

	created := createNote(t, router, "# Hello\nWorld")
	if created.ID == "" {
		t.Fatal("no id assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/notes/"+created.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Content != "# Hello\nWorld" {
		t.Errorf("content = %q", note.Content)
	}
	if note.Attachments == nil {
		t.Error("attachments must be [], not null")
	}
}

func TestGetUnknownNoteIs404(t *testing.T) {
	router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/notes/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "first")
	time.Sleep(5 * time.Millisecond)
	createNote(t, router, "second")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp struct {
		Notes []models.Note `json:"notes"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Notes) != 2 {
		t.Errorf("total = %d, notes = %d", resp.Total, len(resp.Notes))
	}
	// Most recently written first.
	if resp.Notes[0].Content != "second" {
		t.Errorf("first listed = %q, want newest", resp.Notes[0].Content)
	}
}

func TestListNotesPreviewMode(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "Title line\nand the rest of the body")

	req := httptest.NewRequest(http.MethodGet, "/notes?preview=true", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp struct {
		Notes []models.NotePreview `json:"notes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].Title != "Title line" {
		t.Errorf("previews = %+v", resp.Notes)
	}
}

func TestUpdateNotePartialMerge(t *testing.T) {
	router := testEnv(t, "")
	created := createNote(t, router, "v1")

	body, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/"+created.ID, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Content != "v2" {
		t.Errorf("content = %q", updated.Content)
	}
	if updated.ID != created.ID {
		t.Errorf("id changed: %q -> %q", created.ID, updated.ID)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("createdAt must be immutable")
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Error("updatedAt must advance")
	}
}

func TestUpdateUnknownNoteIs404(t *testing.T) {
	router := testEnv(t, "")

	body, _ := json.Marshal(map[string]string{"content": "x"})
	req := httptest.NewRequest(http.MethodPut, "/notes/missing", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	router := testEnv(t, "")
	created := createNote(t, router, "bye")

	req := httptest.NewRequest(http.MethodDelete, "/notes/"+created.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	// Trash policy: the note leaves the listing.
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var resp struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 0 {
		t.Errorf("total after delete = %d", resp.Total)
	}

	// Unknown id deletes are no-ops.
	req = httptest.NewRequest(http.MethodDelete, "/notes/never-existed", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("unknown delete status = %d, want 204", w.Code)
	}
}

func TestSearch(t *testing.T) {
	router := testEnv(t, "")
	createNote(t, router, "Buy milk and eggs")
	createNote(t, router, "water the plants")

	req := httptest.NewRequest(http.MethodGet, "/search?q=MILK", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp struct {
		Results []models.SearchResult `json:"results"`
		Total   int                   `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("results = %+v", resp)
	}
	if resp.Results[0].MatchIndex != 4 {
		t.Errorf("matchIndex = %d, want 4", resp.Results[0].MatchIndex)
	}

	// Empty query returns an empty, non-null list.
	req = httptest.NewRequest(http.MethodGet, "/search?q=", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte(`"results":[]`)) {
		t.Errorf("empty query body = %s", body)
	}
}

func TestAuthTokenMode(t *testing.T) {
	router := testEnv(t, "sesame")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer sesame")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", w.Code)
	}
}

func TestMediaUpload(t *testing.T) {
	router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, "not really jpeg bytes")
	_ = mw.WriteField("type", "image")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}

	var att models.Attachment
	if err := json.Unmarshal(w.Body.Bytes(), &att); err != nil {
		t.Fatal(err)
	}
	if att.ID == "" || att.URI == "" {
		t.Errorf("attachment = %+v", att)
	}
	if att.Type != models.MediaImage {
		t.Errorf("type = %q", att.Type)
	}
	if att.FileSize != int64(len("not really jpeg bytes")) {
		t.Errorf("fileSize = %d", att.FileSize)
	}
}

func TestMediaUploadRejectsUnknownType(t *testing.T) {
	router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "x.bin")
	_, _ = io.WriteString(fw, "data")
	_ = mw.WriteField("type", "hologram")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMediaSafeNameRejectsTraversal(t *testing.T) {
	mh := NewMediaHandler(media.New(t.TempDir()))

	for _, name := range []string{"", "../../etc/passwd", "a/b.png", ".."} {
		if _, err := mh.safeName(name); err == nil {
			t.Errorf("safeName(%q) accepted", name)
		}
	}
	if _, err := mh.safeName("plain.png"); err != nil {
		t.Errorf("safeName(plain.png) rejected: %v", err)
	}
}
