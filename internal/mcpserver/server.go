// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes LiFlux note tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/liflux/liflux/internal/apperr"
	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/store"
)

// Server wraps the MCP server with LiFlux tools.
type Server struct {
	mcp   *server.MCPServer
	store store.Store
	media *media.Store
}

// New creates a new MCP server with all note tools registered.
func New(st store.Store, m *media.Store) *Server {
	s := &Server{store: st, media: m}

	s.mcp = server.NewMCPServer(
		"LiFlux",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all active notes, newest first. Trashed notes are excluded. "+
			"Returns compact previews (id, title, snippet, attachment count)."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a single note by id, including its full content and attachment metadata."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note identifier")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note from plain Markdown content. The server assigns "+
			"the id and timestamps; do not include frontmatter. Read the get_note_contract tool "+
			"or the liflux://note-format resource for details on the stored format."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the note")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of an existing note. Attachments and timestamps "+
			"are managed by the server and survive the update."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note identifier")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown body")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by id. Depending on server policy the note is either "+
			"moved to trash or removed permanently; deleting an unknown id is a no-op."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note identifier")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search across active notes. Results carry "+
			"a context window around the first match and are ordered by match position."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical LiFlux note document format. "+
			"Call this before reasoning about raw note files."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("attach_media",
		mcp.WithDescription("Download an image (http/https URL or base64 data URI), store it in "+
			"the managed media directory, and attach it to the given note."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note to attach the media to")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data URI of the media")),
		mcp.WithString("filename", mcp.Description("Optional filename override")),
	), s.attachMedia)

	// Resource: note document format.
	s.mcp.AddResource(
		mcp.NewResource("liflux://note-format", "Note Document Format",
			mcp.WithResourceDescription("Canonical on-disk note document format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.store.GetAllNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	previews := make([]models.NotePreview, 0, len(notes))
	for _, n := range notes {
		previews = append(previews, n.Preview())
	}
	out, _ := json.MarshalIndent(previews, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.store.GetNoteByID(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if note == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(note, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.store.CreateNote(ctx, store.CreateNoteParams{Content: content})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.store.UpdateNote(ctx, id, store.NoteUpdate{Content: &content})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", note.ID)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.store.SearchNotes(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "liflux://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
