package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// DownloadTool handles the download_pdf MCP tool.
type DownloadTool struct {
	fetcher Downloader
}

// NewDownloadTool creates a DownloadTool.
func NewDownloadTool(fetcher Downloader) *DownloadTool {
	return &DownloadTool{fetcher: fetcher}
}

// Definition returns the MCP tool definition for registration.
func (t *DownloadTool) Definition() mcp.Tool {
	return mcp.NewTool("download_pdf",
		mcp.WithDescription(
			"Download a PDF from a URL and save it locally. "+
				"Google Drive share links are accepted. "+
				"Returns the local file path to pass to extract_form_fields or fill_pdf_form.",
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("HTTP(S) URL of the PDF"),
		),
	)
}

// Handle processes the download_pdf tool call.
func (t *DownloadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(req.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("'url' is required"), nil
	}

	dl, err := t.fetcher.DownloadPDF(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to download PDF: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"status":     "success",
		"message":    fmt.Sprintf("Downloaded PDF to %s", dl.Path),
		"filepath":   dl.Path,
		"size_bytes": dl.Size,
	})
}
