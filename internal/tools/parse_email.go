package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/formpilot/internal/email"
)

// ParseEmailTool handles the parse_email MCP tool.
type ParseEmailTool struct {
	fetcher DocumentFetcher
}

// NewParseEmailTool creates a ParseEmailTool.
func NewParseEmailTool(fetcher DocumentFetcher) *ParseEmailTool {
	return &ParseEmailTool{fetcher: fetcher}
}

// Definition returns the MCP tool definition for registration.
func (t *ParseEmailTool) Definition() mcp.Tool {
	return mcp.NewTool("parse_email",
		mcp.WithDescription(
			"Parse an email JSON document and extract its PDF attachment URLs. "+
				"The document follows the Gmail message layout (sender, subject, payload.parts).",
		),
		mcp.WithString("email_json_url",
			mcp.Required(),
			mcp.Description("URL of the email JSON document"),
		),
	)
}

// Handle processes the parse_email tool call.
func (t *ParseEmailTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(req.GetString("email_json_url", ""))
	if url == "" {
		return mcp.NewToolResultError("'email_json_url' is required"), nil
	}

	raw, err := t.fetcher.GetJSON(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch email: %v", err)), nil
	}
	msg, err := email.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse email: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"status":    "success",
		"sender":    msg.Sender,
		"subject":   msg.Subject,
		"pdf_count": len(msg.PDFURLs),
		"pdf_urls":  msg.PDFURLs,
	})
}
