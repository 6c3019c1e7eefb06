package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugs/internal/models"
	"github.com/joescharf/bugs/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	return NewServer(s, testLogger()), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestListBugs_Empty(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "GET", "/api/bugs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestBugCRUD_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	// Create
	w := do(t, router, "POST", "/api/bugs", `{"title":"Bug 2","description":"Desc","status":"open"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.Bug](t, w)
	assert.Equal(t, "Bug 2", created.Title)
	assert.Equal(t, models.BugStatusOpen, created.Status)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, w.Body.String(), `"createdAt"`)

	// Get
	w = do(t, router, "GET", "/api/bugs/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[models.Bug](t, w).ID)

	// Update
	w = do(t, router, "PUT", "/api/bugs/"+created.ID, `{"title":"Bug 2","description":"Updated","status":"resolved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Bug](t, w)
	assert.Equal(t, models.BugStatusResolved, updated.Status)
	assert.Equal(t, "Updated", updated.Description)

	// Delete
	w = do(t, router, "DELETE", "/api/bugs/"+created.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Bug deleted"}`, w.Body.String())

	// Gone
	w = do(t, router, "GET", "/api/bugs/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Bug not found"}`, w.Body.String())
}

func TestCreateBug_DefaultStatus(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "POST", "/api/bugs", `{"title":"t","description":"d"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.BugStatusOpen, decode[models.Bug](t, w).Status)
}

func TestCreateBug_Invalid(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "POST", "/api/bugs", `{"title":"  ","status":"later"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":{
		"title":"Title is required.",
		"description":"Description is required.",
		"status":"Invalid status."}}`, w.Body.String())

	w = do(t, router, "POST", "/api/bugs", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Title is required.")

	w = do(t, router, "POST", "/api/bugs", `["not","an","object"]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"errors"`)

	bugs, err := s.ListBugs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bugs, "invalid creates must not reach the store")
}

func TestCreateBug_MalformedJSON(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "POST", "/api/bugs", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Invalid JSON body"}`, w.Body.String())
}

func TestListBugs_NewestFirst(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	for _, title := range []string{"A", "B", "C"} {
		w := do(t, router, "POST", "/api/bugs", `{"title":"`+title+`","description":"d"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, router, "GET", "/api/bugs", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Bug](t, w)
	require.Len(t, list, 3)
	assert.Equal(t, "C", list[0].Title)
	assert.Equal(t, "B", list[1].Title)
	assert.Equal(t, "A", list[2].Title)
}

func TestUpdateBug_NotFoundAndInvalid(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	existing := &models.Bug{Title: "keep", Description: "me"}
	require.NoError(t, s.CreateBug(ctx, existing))

	// Nonexistent identifier
	other := &models.Bug{Title: "gone", Description: "soon"}
	require.NoError(t, s.CreateBug(ctx, other))
	_, err := s.DeleteBug(ctx, other.ID)
	require.NoError(t, err)

	w := do(t, router, "PUT", "/api/bugs/"+other.ID, `{"title":"t","description":"d"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Bug not found"}`, w.Body.String())

	// Invalid data leaves the stored record unchanged
	w = do(t, router, "PUT", "/api/bugs/"+existing.ID, `{"title":"","description":"changed","status":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got, err := s.GetBug(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Title)
	assert.Equal(t, "me", got.Description)
	assert.Equal(t, models.BugStatusOpen, got.Status)
}

func TestDeleteBug_NotFound(t *testing.T) {
	srv, s := setupTestServer(t)
	ctx := context.Background()

	b := &models.Bug{Title: "t", Description: "d"}
	require.NoError(t, s.CreateBug(ctx, b))
	_, err := s.DeleteBug(ctx, b.ID)
	require.NoError(t, err)

	w := do(t, srv.Router(), "DELETE", "/api/bugs/"+b.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMalformedID_GenericServerError(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv.Router(), "GET", "/api/bugs/not-a-valid-id", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "malformed")
}

// failingStore fails every call to exercise the central error path.
type failingStore struct {
	store.Store
}

func (failingStore) ListBugs(context.Context) ([]*models.Bug, error) {
	return nil, errors.New("connection reset by peer")
}

func TestListBugs_StoreFailure(t *testing.T) {
	srv := NewServer(failingStore{}, testLogger())

	w := do(t, srv.Router(), "GET", "/api/bugs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "connection reset")
}

// panickingStore panics to exercise recovery.
type panickingStore struct {
	store.Store
}

func (panickingStore) GetBug(context.Context, string) (*models.Bug, error) {
	panic("boom")
}

func TestGetBug_PanicRecovered(t *testing.T) {
	srv := NewServer(panickingStore{}, testLogger())

	w := do(t, srv.Router(), "GET", "/api/bugs/01J00000000000000000000000", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "OPTIONS", "/api/bugs", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, router, "GET", "/api/bugs", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	do(t, router, "GET", "/api/bugs", "")
	w = do(t, router, "GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `bugs_api_requests_total{code="200",op="list"} 1`), body)
	assert.Contains(t, body, "bugs_api_request_duration_seconds")
}

func TestOperationLogging(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	var buf bytes.Buffer
	srv := NewServer(s, slog.New(slog.NewJSONHandler(&buf, nil)))

	do(t, srv.Router(), "POST", "/api/bugs", `{"title":"t","description":"d"}`)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "bug api", rec["msg"])
	assert.Equal(t, "create", rec["op"])
	assert.Equal(t, float64(http.StatusCreated), rec["status"])
}
