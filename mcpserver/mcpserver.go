// Package mcpserver exposes the chat engine as MCP tools over stdio, so
// agent hosts can query department data without the HTTP gateway.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/finsolve/rbac-chat/metrics"
	"github.com/finsolve/rbac-chat/orchestrator"
	"github.com/finsolve/rbac-chat/rbac"
)

const defaultTopK = 4

// Server wraps an MCP stdio server around the orchestrator.
type Server struct {
	mcpServer *server.MCPServer
	store     *rbac.Store
	orch      *orchestrator.Orchestrator
	tracker   *metrics.Tracker
}

// New registers the chat and analytics tools.
func New(store *rbac.Store, orch *orchestrator.Orchestrator, tracker *metrics.Tracker) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("rbac-chat", "1.0.0", server.WithToolCapabilities(false)),
		store:     store,
		orch:      orch,
		tracker:   tracker,
	}

	chatTool := mcp.NewTool("chat",
		mcp.WithDescription("Ask a question against role-scoped department data. Structured questions run as SQL, everything else is answered from department documents."),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Caller role, e.g. finance, marketing, hr, engineering, employee, c_level."),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("How many document chunks to retrieve (1-8)."),
		),
	)
	s.mcpServer.AddTool(chatTool, s.handleChat)

	analyticsTool := mcp.NewTool("analytics",
		mcp.WithDescription("Per-role request counts and cache statistics. Restricted to the c_level role."),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Caller role, must be c_level."),
		),
	)
	s.mcpServer.AddTool(analyticsTool, s.handleAnalytics)

	return s
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	role, err := req.RequireString("role")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.store.Known(rbac.NormalizeRole(role)) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown role %q", role)), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := int(req.GetFloat("top_k", defaultTopK))
	if topK <= 0 || topK > 8 {
		topK = defaultTopK
	}

	resp := s.orch.Handle(ctx, role, message, topK)
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal chat response: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleAnalytics(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	role, err := req.RequireString("role")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rbac.NormalizeRole(role) != "c_level" {
		return mcp.NewToolResultError("analytics is restricted to the c_level role"), nil
	}
	payload, err := json.Marshal(s.tracker.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal analytics: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
