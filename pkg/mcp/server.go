// Package mcp exposes the tool's validate/lint/run surface to AI agents
// over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with the uiflow tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"uiflow",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("uiflow/validate",
			mcp.WithDescription("Validate a flow YAML file against the schema"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the flow YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("uiflow/lint",
			mcp.WithDescription("Lint a flow YAML file for selector and secret anti-patterns"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the flow YAML file")),
		),
		HandleLint,
	)

	s.AddTool(
		mcp.NewTool("uiflow/run",
			mcp.WithDescription("Run a flow headlessly and return the result summary"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the flow YAML file")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("uiflow/list-steps",
			mcp.WithDescription("List every registered step type"),
		),
		HandleListSteps,
	)

	s.AddTool(
		mcp.NewTool("uiflow/schema",
			mcp.WithDescription("Export the flow JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
