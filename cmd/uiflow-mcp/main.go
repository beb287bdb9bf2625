// Package main provides the uiflow-mcp binary — MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	umcp "github.com/uiflow/uiflow/pkg/mcp"
)

var version = "dev"

func main() {
	s := umcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
