package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/bugs/internal/bugs"
	"github.com/joescharf/bugs/internal/models"
	"github.com/joescharf/bugs/internal/store"
)

// Server exposes the bug service as MCP tools.
type Server struct {
	bugs    *bugs.Service
	version string
}

// NewServer creates the MCP server wrapper over the given store.
func NewServer(s store.Store, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{bugs: bugs.NewService(s), version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("bugs", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listBugsTool())
	srv.AddTool(s.getBugTool())
	srv.AddTool(s.createBugTool())
	srv.AddTool(s.updateBugTool())
	srv.AddTool(s.deleteBugTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

const statusHelp = "open, in-progress, resolved"

// bugs_list
func (s *Server) listBugsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_list",
		mcp.WithDescription("List reported bugs, newest first. Returns a JSON array of bugs with id, title, description, status, createdAt and updatedAt."),
		mcp.WithString("status", mcp.Description("Filter by status: "+statusHelp)),
	)
	return tool, s.handleListBugs
}

func (s *Server) handleListBugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.bugs.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list bugs: %v", err)), nil
	}

	if status := request.GetString("status", ""); status != "" {
		filtered := []*models.Bug{}
		for _, b := range list {
			if string(b.Status) == status {
				filtered = append(filtered, b)
			}
		}
		list = filtered
	}

	return jsonResult(list)
}

// bugs_get
func (s *Server) getBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_get",
		mcp.WithDescription("Get a single bug by ID. Returns the bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug ID")),
	)
	return tool, s.handleGetBug
}

func (s *Server) handleGetBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	bug, err := s.bugs.Get(ctx, id)
	if err != nil {
		return toolError("get", id, err), nil
	}
	return jsonResult(bug)
}

// bugs_create
func (s *Server) createBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_create",
		mcp.WithDescription("Report a new bug. Returns the created bug as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Bug title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What goes wrong and how to reproduce it")),
		mcp.WithString("status", mcp.Description("Initial status: "+statusHelp+" (default: open)")),
	)
	return tool, s.handleCreateBug
}

func (s *Server) handleCreateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := models.BugInput{
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
		Status:      models.BugStatus(request.GetString("status", "")),
	}

	bug, err := s.bugs.Create(ctx, bugs.Input(in))
	if err != nil {
		return toolError("create", "", err), nil
	}
	return jsonResult(bug)
}

// bugs_update
func (s *Server) updateBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_update",
		mcp.WithDescription("Update an existing bug. Provide the bug ID and at least one field to change; omitted fields keep their current value. Returns the updated bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status: "+statusHelp)),
	)
	return tool, s.handleUpdateBug
}

func (s *Server) handleUpdateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	title := request.GetString("title", "")
	description := request.GetString("description", "")
	status := request.GetString("status", "")
	if title == "" && description == "" && status == "" {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: title, description, status"), nil
	}

	current, err := s.bugs.Get(ctx, id)
	if err != nil {
		return toolError("update", id, err), nil
	}
	in := models.BugInput{Title: current.Title, Description: current.Description, Status: current.Status}
	if title != "" {
		in.Title = title
	}
	if description != "" {
		in.Description = description
	}
	if status != "" {
		in.Status = models.BugStatus(status)
	}

	bug, err := s.bugs.Update(ctx, id, bugs.Input(in))
	if err != nil {
		return toolError("update", id, err), nil
	}
	return jsonResult(bug)
}

// bugs_delete
func (s *Server) deleteBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_delete",
		mcp.WithDescription("Delete a bug by ID. Returns the deleted bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug ID")),
	)
	return tool, s.handleDeleteBug
}

func (s *Server) handleDeleteBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	bug, err := s.bugs.Delete(ctx, id)
	if err != nil {
		return toolError("delete", id, err), nil
	}
	return jsonResult(bug)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(op, id string, err error) *mcp.CallToolResult {
	var verr *bugs.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(strings.Join(verr.Errors.Messages(), " "))
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("bug not found: %s", id))
	case errors.Is(err, store.ErrMalformedID):
		return mcp.NewToolResultError(fmt.Sprintf("invalid bug id: %s", id))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s bug: %v", op, err))
}
