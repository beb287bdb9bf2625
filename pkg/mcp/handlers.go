package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/uiflow/uiflow/pkg/lint"
	"github.com/uiflow/uiflow/pkg/runner"
	"github.com/uiflow/uiflow/pkg/schema"
	"github.com/uiflow/uiflow/pkg/steps"
)

// HandleValidate implements the uiflow/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	s, errs := schema.ValidateFile(path)
	if len(errs) > 0 {
		var lines []string
		for _, e := range errs {
			lines = append(lines, e.Error())
		}
		return errorResult(strings.Join(lines, "\n")), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d steps)", s.Title, len(s.FlatSteps()))), nil
}

// HandleLint implements the uiflow/lint MCP tool.
func HandleLint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	s, errs := schema.ValidateFile(path)
	if s == nil {
		return errorResult(errs[0].Error()), nil
	}
	issues := lint.Lint(s)
	if len(issues) == 0 {
		return textResult("no lint issues"), nil
	}
	data, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRun implements the uiflow/run MCP tool. Runs are always
// headless here — an agent has no display to attach to.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	s, errs := schema.ValidateFile(path)
	if len(errs) > 0 {
		return errorResult(errs[0].Error()), nil
	}

	r := runner.New(steps.NewDefaultRegistry())
	res, err := r.Run(ctx, s, runner.Config{})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	summary := res.Summarize()
	return textResult(fmt.Sprintf("%s: %s (%d passed, %d failed, %d skipped)\nartifacts: %s",
		res.Title, res.Status, summary.Passed, summary.Failed, summary.Skipped, res.ArtifactsDir)), nil
}

// HandleListSteps implements the uiflow/list-steps MCP tool.
func HandleListSteps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	registry := steps.NewDefaultRegistry()
	data, err := json.MarshalIndent(registry.List(), "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleSchema implements the uiflow/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

func errorResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultError(text)
}
