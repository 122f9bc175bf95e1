package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProcessTool handles the process_email_automation MCP tool.
type ProcessTool struct {
	runner EmailProcessor
}

// NewProcessTool creates a ProcessTool.
func NewProcessTool(runner EmailProcessor) *ProcessTool {
	return &ProcessTool{runner: runner}
}

// Definition returns the MCP tool definition for registration.
func (t *ProcessTool) Definition() mcp.Tool {
	return mcp.NewTool("process_email_automation",
		mcp.WithDescription(
			"Process an email with a PDF form end to end: parse the email, download the first PDF "+
				"attachment, extract its fields, generate values with AI, normalize and fill them. "+
				"Returns the filled PDF path and its base64 content.",
		),
		mcp.WithString("email_json_url",
			mcp.Required(),
			mcp.Description("URL of the email JSON document"),
		),
	)
}

// Handle processes the process_email_automation tool call.
func (t *ProcessTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(req.GetString("email_json_url", ""))
	if url == "" {
		return mcp.NewToolResultError("'email_json_url' is required"), nil
	}

	res, err := t.runner.Process(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Processing failed: %v", err)), nil
	}
	return jsonResult(res)
}
