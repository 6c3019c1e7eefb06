package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugs/internal/models"
	"github.com/joescharf/bugs/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	srv := NewServer(s, "test")
	require.NotNil(t, srv)
	return srv, s
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func seedBug(t *testing.T, s store.Store, title string, status models.BugStatus) *models.Bug {
	t.Helper()
	b := &models.Bug{Title: title, Description: title + " description", Status: status}
	require.NoError(t, s.CreateBug(context.Background(), b))
	return b
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestHandleListBugs_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListBugs(context.Background(), callToolReq("bugs_list", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestHandleListBugs_StatusFilter(t *testing.T) {
	srv, s := newTestServer(t)
	seedBug(t, s, "alpha", models.BugStatusOpen)
	seedBug(t, s, "beta", models.BugStatusResolved)

	result, err := srv.handleListBugs(context.Background(), callToolReq("bugs_list", nil))
	require.NoError(t, err)
	var all []models.Bug
	resultJSON(t, result, &all)
	assert.Len(t, all, 2)

	result, err = srv.handleListBugs(context.Background(), callToolReq("bugs_list", map[string]any{"status": "resolved"}))
	require.NoError(t, err)
	var resolved []models.Bug
	resultJSON(t, result, &resolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "beta", resolved[0].Title)
}

func TestHandleGetBug(t *testing.T) {
	srv, s := newTestServer(t)
	b := seedBug(t, s, "alpha", models.BugStatusOpen)

	result, err := srv.handleGetBug(context.Background(), callToolReq("bugs_get", map[string]any{"id": b.ID}))
	require.NoError(t, err)
	var got models.Bug
	resultJSON(t, result, &got)
	assert.Equal(t, "alpha", got.Title)
}

func TestHandleGetBug_Errors(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGetBug(ctx, callToolReq("bugs_get", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "missing required parameter: id")

	b := seedBug(t, s, "gone", models.BugStatusOpen)
	_, err = s.DeleteBug(ctx, b.ID)
	require.NoError(t, err)

	result, err = srv.handleGetBug(ctx, callToolReq("bugs_get", map[string]any{"id": b.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "bug not found")

	result, err = srv.handleGetBug(ctx, callToolReq("bugs_get", map[string]any{"id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid bug id")
}

func TestHandleCreateBug(t *testing.T) {
	srv, s := newTestServer(t)

	result, err := srv.handleCreateBug(context.Background(), callToolReq("bugs_create", map[string]any{
		"title":       "  Crash on start ",
		"description": "Segfault when config is missing",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var created models.Bug
	resultJSON(t, result, &created)
	assert.Equal(t, "Crash on start", created.Title)
	assert.Equal(t, models.BugStatusOpen, created.Status)

	list, err := s.ListBugs(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHandleCreateBug_Invalid(t *testing.T) {
	srv, s := newTestServer(t)

	result, err := srv.handleCreateBug(context.Background(), callToolReq("bugs_create", map[string]any{
		"title":  "t",
		"status": "wontfix",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Description is required.")
	assert.Contains(t, text, "Invalid status.")

	list, err := s.ListBugs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleUpdateBug_Partial(t *testing.T) {
	srv, s := newTestServer(t)
	b := seedBug(t, s, "alpha", models.BugStatusOpen)

	result, err := srv.handleUpdateBug(context.Background(), callToolReq("bugs_update", map[string]any{
		"id":     b.ID,
		"status": "in-progress",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var updated models.Bug
	resultJSON(t, result, &updated)
	assert.Equal(t, "alpha", updated.Title)
	assert.Equal(t, "alpha description", updated.Description)
	assert.Equal(t, models.BugStatusInProgress, updated.Status)
}

func TestHandleUpdateBug_NoFields(t *testing.T) {
	srv, s := newTestServer(t)
	b := seedBug(t, s, "alpha", models.BugStatusOpen)

	result, err := srv.handleUpdateBug(context.Background(), callToolReq("bugs_update", map[string]any{"id": b.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no fields provided")
}

func TestHandleUpdateBug_InvalidStatus(t *testing.T) {
	srv, s := newTestServer(t)
	b := seedBug(t, s, "alpha", models.BugStatusOpen)

	result, err := srv.handleUpdateBug(context.Background(), callToolReq("bugs_update", map[string]any{
		"id":     b.ID,
		"status": "closed",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Invalid status.", resultText(t, result))

	got, err := s.GetBug(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusOpen, got.Status)
}

func TestHandleDeleteBug(t *testing.T) {
	srv, s := newTestServer(t)
	b := seedBug(t, s, "alpha", models.BugStatusOpen)
	ctx := context.Background()

	result, err := srv.handleDeleteBug(ctx, callToolReq("bugs_delete", map[string]any{"id": b.ID}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = srv.handleDeleteBug(ctx, callToolReq("bugs_delete", map[string]any{"id": b.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "bug not found")
}
