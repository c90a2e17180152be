package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/store"
	"github.com/liflux/liflux/internal/testutil"
)

func testServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, m := testutil.DocumentEnv(t)
	return New(st, m), st
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "update_note":
		result, err = srv.updateNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	case "attach_media":
		result, err = srv.attachMedia(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"content": "# Test\nHello",
	})
	text := resultText(r)
	if !strings.HasPrefix(text, "created: ") {
		t.Fatalf("create result = %q", text)
	}
	id := strings.TrimPrefix(text, "created: ")

	r = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	var note models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &note); err != nil {
		t.Fatalf("read result not JSON: %v", err)
	}
	if note.Content != "# Test\nHello" || note.ID != id {
		t.Errorf("note = %+v", note)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestUpdateNote(t *testing.T) {
	srv, _ := testServer(t)

	created := resultText(callTool(t, srv, "create_note", map[string]interface{}{"content": "v1"}))
	id := strings.TrimPrefix(created, "created: ")

	r := callTool(t, srv, "update_note", map[string]interface{}{"id": id, "content": "v2"})
	if got := resultText(r); got != "updated: "+id {
		t.Errorf("update result = %q", got)
	}

	r = callTool(t, srv, "update_note", map[string]interface{}{"id": "missing", "content": "x"})
	if !r.IsError {
		t.Error("updating an unknown note should be an error")
	}
}

func TestDeleteNoteHidesFromList(t *testing.T) {
	srv, _ := testServer(t)

	created := resultText(callTool(t, srv, "create_note", map[string]interface{}{"content": "bye"}))
	id := strings.TrimPrefix(created, "created: ")

	r := callTool(t, srv, "delete_note", map[string]interface{}{"id": id})
	if got := resultText(r); got != "deleted: "+id {
		t.Errorf("delete result = %q", got)
	}

	r = callTool(t, srv, "list_notes", map[string]interface{}{})
	var previews []models.NotePreview
	if err := json.Unmarshal([]byte(resultText(r)), &previews); err != nil {
		t.Fatalf("list result not JSON: %v", err)
	}
	if len(previews) != 0 {
		t.Errorf("previews = %+v, want empty", previews)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_note", map[string]interface{}{"content": "Buy milk and eggs"})

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "milk"})
	var results []models.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatalf("search result not JSON: %v", err)
	}
	if len(results) != 1 || results[0].MatchIndex != 4 {
		t.Errorf("results = %+v", results)
	}
}

func TestGetNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_note_contract", map[string]interface{}{}))
	if !strings.Contains(text, "JSON") || !strings.Contains(text, "media/") {
		t.Errorf("contract looks wrong:\n%s", text)
	}
}

// Minimal 1x1 PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

func TestAttachMediaFromDataURI(t *testing.T) {
	srv, st := testServer(t)

	created := resultText(callTool(t, srv, "create_note", map[string]interface{}{"content": "pic note"}))
	id := strings.TrimPrefix(created, "created: ")

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)
	r := callTool(t, srv, "attach_media", map[string]interface{}{
		"note_id":  id,
		"url":      dataURI,
		"filename": "dot.png",
	})
	if r.IsError {
		t.Fatalf("attach_media failed: %s", resultText(r))
	}

	var res attachResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.AttachmentID == "" || !strings.HasSuffix(res.URI, "dot.png") {
		t.Errorf("result = %+v", res)
	}
	if res.Width != 1 || res.Height != 1 {
		t.Errorf("dimensions = %dx%d, want 1x1", res.Width, res.Height)
	}

	note, err := st.GetNoteByID(context.Background(), id)
	if err != nil || note == nil {
		t.Fatalf("note lookup: %v, %v", note, err)
	}
	if len(note.Attachments) != 1 || note.Attachments[0].ID != res.AttachmentID {
		t.Errorf("attachments = %+v", note.Attachments)
	}
}

func TestAttachMediaRejectsMismatchedContent(t *testing.T) {
	srv, _ := testServer(t)

	created := resultText(callTool(t, srv, "create_note", map[string]interface{}{"content": "x"}))
	id := strings.TrimPrefix(created, "created: ")

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png"))
	r := callTool(t, srv, "attach_media", map[string]interface{}{
		"note_id": id,
		"url":     dataURI,
	})
	if !r.IsError {
		t.Error("mismatched magic bytes should be rejected")
	}
}

func TestAttachMediaUnknownNote(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "attach_media", map[string]interface{}{
		"note_id": "ghost",
		"url":     "data:image/png;base64,AAAA",
	})
	if !r.IsError {
		t.Error("attaching to an unknown note should be an error")
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "169.254.169.254", "metadata.google.internal"} {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("checkBlockedHost(%q) = nil, want error", host)
		}
	}
	if err := checkBlockedHost("93.184.216.34"); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
}
