package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
	"github.com/starford/othala/internal/testutil"
)

// testEnv builds a router over a throwaway embedded store. An empty token
// means auth is disabled.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	s := testutil.SQLiteStore(t, 3)
	return NewRouter(s, authToken != "", authToken)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, id, content, keyContext string) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{
		ID: id, Content: content, KeyContext: keyContext,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s status = %d, body = %s", id, w.Code, w.Body.String())
	}
}

func TestCreateAndGetNote(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "remember [[Go Generics]]", "Reading")

	w := doJSON(t, router, http.MethodGet, "/notes/n1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var note models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	if note.KeyContext != "Reading" {
		t.Errorf("key context = %q, want Reading", note.KeyContext)
	}
}

func TestCreateNote_Conflict(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "a", "Work")
	w := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{
		ID: "n1", Content: "b", KeyContext: "Work",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", w.Code)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{ID: "n1", Content: "a"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing key context status = %d, want 400", w.Code)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/notes/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestUpdateNote_EmptyPatch(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "a", "Work")
	w := doJSON(t, router, http.MethodPatch, "/notes/n1", UpdateNoteRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "a", "Work")
	w := doJSON(t, router, http.MethodDelete, "/notes/n1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/notes/n1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestFetchNotes(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "a", "Work")
	createNote(t, router, "n2", "b", "Home")

	// Neither filter supplied is a client error.
	w := doJSON(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unfiltered fetch status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/notes?key_context=Home", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp FetchNotesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].ID != "n2" {
		t.Errorf("notes = %+v, want just n2", resp.Notes)
	}
}

func TestFilterNotes_AppliedLimit(t *testing.T) {
	router := testEnv(t, "")

	for i := 0; i < 3; i++ {
		createNote(t, router, fmt.Sprintf("n%d", i), "x", "Work")
	}

	w := doJSON(t, router, http.MethodPost, "/notes/filter", store.NoteFilter{Limit: 99999})
	if w.Code != http.StatusOK {
		t.Fatalf("filter status = %d, body = %s", w.Code, w.Body.String())
	}
	var res store.FilterResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.TotalCount != 3 {
		t.Errorf("total = %d, want 3", res.TotalCount)
	}
	if res.AppliedFilters.Limit != store.MaxFilterLimit {
		t.Errorf("applied limit = %d, want clamped to %d", res.AppliedFilters.Limit, store.MaxFilterLimit)
	}
}

func TestRenameContext(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "see [[Old]]", "Old")

	w := doJSON(t, router, http.MethodPost, "/contexts/rename", RenameContextRequest{
		OldName: "Old", NewName: "New",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body = %s", w.Code, w.Body.String())
	}
	var res store.RenameResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Merged || res.NotesUpdated != 1 {
		t.Errorf("result = %+v, want plain rename touching one note", res)
	}

	w = doJSON(t, router, http.MethodPost, "/contexts/rename", RenameContextRequest{
		OldName: "Missing", NewName: "New",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("rename of missing context status = %d, want 404", w.Code)
	}
}

func TestContextExists(t *testing.T) {
	router := testEnv(t, "")

	createNote(t, router, "n1", "a", "Work")

	w := doJSON(t, router, http.MethodGet, "/contexts/exists?name=Work", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("exists status = %d", w.Code)
	}
	var resp ContextExistsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Exists {
		t.Error("Work should exist")
	}
}

func TestSearch_BadThreshold(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/search", SearchRequest{
		Vector: []float32{1, 0, 0}, Threshold: 2.0,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range threshold status = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes/filter-options", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/filter-options", nil)
	req.Header.Set("Authorization", "Bearer secrets")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes/filter-options", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", w.Code)
	}
}
