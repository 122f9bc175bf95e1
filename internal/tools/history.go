package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/formpilot/internal/history"
)

// HistoryTool handles the list_fill_history MCP tool.
type HistoryTool struct {
	log RunLog
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(log RunLog) *HistoryTool {
	return &HistoryTool{log: log}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("list_fill_history",
		mcp.WithDescription(
			"List recent process_email_automation runs, newest first. "+
				"With a query, runs are matched by full-text search over subject, sender, "+
				"PDF paths and message.",
		),
		mcp.WithString("query",
			mcp.Description("Optional full-text search terms"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 10)"),
		),
	)
}

// Handle processes the list_fill_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.log == nil {
		return mcp.NewToolResultError("Run history is disabled"), nil
	}

	limit := req.GetInt("limit", 10)
	query := strings.TrimSpace(req.GetString("query", ""))

	var (
		runs []history.Run
		err  error
	)
	if query != "" {
		runs, err = t.log.Search(ctx, query, limit)
	} else {
		runs, err = t.log.Recent(ctx, limit)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read history: %v", err)), nil
	}
	if runs == nil {
		runs = []history.Run{}
	}

	return jsonResult(map[string]any{
		"status": "success",
		"count":  len(runs),
		"runs":   runs,
	})
}
