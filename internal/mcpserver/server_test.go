package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/starford/othala/internal/testutil"
)

// callTool drives a tool through the server's JSON-RPC entry point and
// returns the raw response serialized back to JSON.
func callTool(t *testing.T, s *Server, name string, args map[string]any) string {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal arguments: %v", err)
	}
	msg := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":%s}`, params)
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(msg))
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return string(out)
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(testutil.SQLiteStore(t, 3))
}

func TestCreateAndFetchNotes(t *testing.T) {
	s := testServer(t)

	resp := callTool(t, s, "create_note", map[string]any{
		"id":          "n1",
		"content":     "prototype the [[Filter Compiler]]",
		"key_context": "Othala",
		"tags":        "engine, parser",
	})
	if strings.Contains(resp, `"isError":true`) {
		t.Fatalf("create_note failed: %s", resp)
	}

	resp = callTool(t, s, "fetch_notes", map[string]any{"key_context": "Othala"})
	if !strings.Contains(resp, "Filter Compiler") {
		t.Errorf("fetch_notes response missing the note: %s", resp)
	}
}

func TestCreateNote_MissingRequired(t *testing.T) {
	s := testServer(t)

	resp := callTool(t, s, "create_note", map[string]any{"id": "n1", "content": "x"})
	if !strings.Contains(resp, `"isError":true`) {
		t.Errorf("create_note without key_context should error: %s", resp)
	}
}

func TestRenameContextTool(t *testing.T) {
	s := testServer(t)

	callTool(t, s, "create_note", map[string]any{
		"id": "n1", "content": "about [[Old]]", "key_context": "Old",
	})

	resp := callTool(t, s, "rename_context", map[string]any{
		"old_name": "Old", "new_name": "New",
	})
	if strings.Contains(resp, `"isError":true`) {
		t.Fatalf("rename_context failed: %s", resp)
	}
	if !strings.Contains(resp, `\"notes_updated\": 1`) {
		t.Errorf("rename result missing updated count: %s", resp)
	}

	resp = callTool(t, s, "search_contexts", map[string]any{"query": "New"})
	if !strings.Contains(resp, "New") {
		t.Errorf("search_contexts should find the renamed context: %s", resp)
	}
}

func TestNoteContractResource(t *testing.T) {
	s := testServer(t)

	msg := `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"othala://note-format"}}`
	resp := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(msg))
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if !strings.Contains(string(out), "Note Format Contract") {
		t.Errorf("resource read missing contract text: %s", out)
	}
}
