// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note storage tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
)

// Server wraps the MCP server with the storage tools.
type Server struct {
	mcp   *server.MCPServer
	store store.Adapter
}

// New creates a new MCP server with all storage tools registered.
func New(s store.Adapter) *Server {
	srv := &Server{store: s}

	srv.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	srv.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note linked to its contexts. Content SHOULD follow the "+
			"note format (inline [[Context Name]] references, #hashtags). Read the contract "+
			"first via the get_note_contract tool or the othala://note-format resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Caller-generated unique note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note content following the note format contract")),
		mcp.WithString("key_context", mcp.Required(), mcp.Description("Primary context name for the note")),
		mcp.WithString("contexts", mcp.Description("Additional context names, comma-separated")),
		mcp.WithString("tags", mcp.Description("Hashtags without the # prefix, comma-separated")),
		mcp.WithString("note_type", mcp.Description("One of: idea, task, journal, reference")),
		mcp.WithString("status", mcp.Description("One of: TODO, DOING, DONE, OBSOLETE")),
		mcp.WithString("deadline", mcp.Description("Deadline as RFC 3339 timestamp")),
	), srv.createNote)

	srv.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Apply a partial update to a note. Only the supplied fields change; "+
			"a supplied contexts list fully replaces the note's context links."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Description("Replacement content")),
		mcp.WithString("key_context", mcp.Description("Replacement primary context")),
		mcp.WithString("contexts", mcp.Description("Replacement context names, comma-separated")),
		mcp.WithString("tags", mcp.Description("Replacement hashtags, comma-separated")),
		mcp.WithString("note_type", mcp.Description("One of: idea, task, journal, reference")),
		mcp.WithString("status", mcp.Description("One of: TODO, DOING, DONE, OBSOLETE")),
		mcp.WithString("deadline", mcp.Description("Deadline as RFC 3339 timestamp")),
	), srv.updateNote)

	srv.mcp.AddTool(mcp.NewTool("fetch_notes",
		mcp.WithDescription("Fetch notes by key context and/or context names, newest first."),
		mcp.WithString("key_context", mcp.Description("Primary context to match")),
		mcp.WithString("contexts", mcp.Description("Context names, comma-separated")),
		mcp.WithString("method", mcp.Description("How multiple contexts combine: AND or OR (default OR)")),
	), srv.fetchNotes)

	srv.mcp.AddTool(mcp.NewTool("filter_notes",
		mcp.WithDescription("Filter notes by contexts (all must match), hashtags (any matches), "+
			"note type, status, and a deadline day. Returns one page plus the total match count."),
		mcp.WithString("contexts", mcp.Description("Context names, comma-separated")),
		mcp.WithString("hashtags", mcp.Description("Hashtags, comma-separated")),
		mcp.WithString("note_type", mcp.Description("One of: idea, task, journal, reference")),
		mcp.WithString("status", mcp.Description("One of: TODO, DOING, DONE, OBSOLETE")),
		mcp.WithString("deadline_on", mcp.Description("UTC day to match deadlines on, as YYYY-MM-DD")),
	), srv.filterNotes)

	srv.mcp.AddTool(mcp.NewTool("search_contexts",
		mcp.WithDescription("Autocomplete context names by substring."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to match")),
	), srv.searchContexts)

	srv.mcp.AddTool(mcp.NewTool("rename_context",
		mcp.WithDescription("Rename a context everywhere, including inline [[references]] in note "+
			"content. If the new name already exists the two contexts are merged."),
		mcp.WithString("old_name", mcp.Required(), mcp.Description("Current context name")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New context name")),
	), srv.renameContext)

	srv.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), srv.getNoteContract)

	// Resource: note format contract.
	srv.mcp.AddResource(
		mcp.NewResource("othala://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical note format that all notes should follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		srv.readNoteFormatResource,
	)

	return srv
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// optString returns the named argument when present and non-empty.
func optString(req mcp.CallToolRequest, key string) (string, bool) {
	v, err := req.RequireString(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	keyContext, err := req.RequireString("key_context")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p := store.CreateNoteParams{ID: id, Content: content, KeyContext: keyContext}
	if v, ok := optString(req, "contexts"); ok {
		p.Contexts = splitList(v)
	}
	if v, ok := optString(req, "tags"); ok {
		p.Tags = splitList(v)
	}
	if v, ok := optString(req, "note_type"); ok {
		t := models.NoteType(v)
		p.NoteType = &t
	}
	if v, ok := optString(req, "status"); ok {
		st := models.NoteStatus(v)
		p.Status = &st
	}
	if v, ok := optString(req, "deadline"); ok {
		d, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid deadline: %v", err)), nil
		}
		p.Deadline = &d
	}

	note, err := s.store.CreateNote(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var patch store.NotePatch
	if v, ok := optString(req, "content"); ok {
		patch.Content = &v
	}
	if v, ok := optString(req, "key_context"); ok {
		patch.KeyContext = &v
	}
	if v, ok := optString(req, "contexts"); ok {
		list := splitList(v)
		patch.Contexts = &list
	}
	if v, ok := optString(req, "tags"); ok {
		list := splitList(v)
		patch.Tags = &list
	}
	if v, ok := optString(req, "note_type"); ok {
		t := models.NoteType(v)
		patch.NoteType = &t
	}
	if v, ok := optString(req, "status"); ok {
		st := models.NoteStatus(v)
		patch.Status = &st
	}
	if v, ok := optString(req, "deadline"); ok {
		d, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid deadline: %v", err)), nil
		}
		patch.Deadline = &d
	}

	note, err := s.store.UpdateNote(ctx, id, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note), nil
}

func (s *Server) fetchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p store.FetchParams
	if v, ok := optString(req, "key_context"); ok {
		p.KeyContext = v
	}
	if v, ok := optString(req, "contexts"); ok {
		p.Contexts = splitList(v)
	}
	if v, ok := optString(req, "method"); ok {
		p.Method = store.FetchMethod(v)
	}

	notes, err := s.store.FetchNotes(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) filterNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var f store.NoteFilter
	if v, ok := optString(req, "contexts"); ok {
		f.Contexts = splitList(v)
	}
	if v, ok := optString(req, "hashtags"); ok {
		f.Hashtags = splitList(v)
	}
	if v, ok := optString(req, "note_type"); ok {
		t := models.NoteType(v)
		f.NoteType = &t
	}
	if v, ok := optString(req, "status"); ok {
		st := models.NoteStatus(v)
		f.Status = &st
	}
	if v, ok := optString(req, "deadline_on"); ok {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid deadline_on: %v", err)), nil
		}
		f.DeadlineOn = &day
	}

	res, err := s.store.FilterNotes(ctx, &f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) searchContexts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	contexts, err := s.store.SearchContexts(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(contexts) == 0 {
		return mcp.NewToolResultText("no matching contexts"), nil
	}
	return jsonResult(contexts), nil
}

func (s *Server) renameContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	oldName, err := req.RequireString("old_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.store.RenameContext(ctx, oldName, newName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
