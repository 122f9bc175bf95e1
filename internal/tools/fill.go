package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// FillTool handles the fill_pdf_form MCP tool.
type FillTool struct {
	filler FormFiller
}

// NewFillTool creates a FillTool.
func NewFillTool(filler FormFiller) *FillTool {
	return &FillTool{filler: filler}
}

// Definition returns the MCP tool definition for registration.
func (t *FillTool) Definition() mcp.Tool {
	return mcp.NewTool("fill_pdf_form",
		mcp.WithDescription(
			"Fill a PDF form with the provided values and save it as <name>_filled.pdf. "+
				"Values are normalized first: month names become numbers, a 4-digit year is split "+
				"across Year-1..Year-4 style digit boxes, a second party identical to the first is cleared "+
				"and fields without a value get deterministic defaults. "+
				"The filled PDF is also returned base64-encoded.",
		),
		mcp.WithString("pdf_path",
			mcp.Required(),
			mcp.Description("Local path of the PDF to fill"),
		),
		mcp.WithObject("field_values",
			mcp.Required(),
			mcp.Description("Mapping of field name to value"),
		),
	)
}

// Handle processes the fill_pdf_form tool call.
func (t *FillTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(req.GetString("pdf_path", ""))
	if path == "" {
		return mcp.NewToolResultError("'pdf_path' is required"), nil
	}

	values, err := stringValues(req.GetArguments()["field_values"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("'field_values' must be an object: %v", err)), nil
	}

	res, err := t.filler.FillForm(ctx, path, values)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fill PDF: %v", err)), nil
	}
	return jsonResult(res)
}
