package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// GenerateTool handles the generate_form_values MCP tool.
type GenerateTool struct {
	gen ValueGenerator
}

// NewGenerateTool creates a GenerateTool. gen may be nil when no model is
// configured; calls then fail with a tool error.
func NewGenerateTool(gen ValueGenerator) *GenerateTool {
	return &GenerateTool{gen: gen}
}

// Definition returns the MCP tool definition for registration.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_form_values",
		mcp.WithDescription(
			"Use a language model to generate realistic sample values for form fields. "+
				"Field names are used verbatim as JSON keys. "+
				"Pass the result to fill_pdf_form, which normalizes dates, years and duplicate parties.",
		),
		mcp.WithArray("field_names",
			mcp.Required(),
			mcp.Description("Exact form field names to generate values for"),
			mcp.WithStringItems(),
		),
		mcp.WithString("context",
			mcp.Description("Optional document text to help the model choose sensible values"),
		),
	)
}

// Handle processes the generate_form_values tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.gen == nil {
		return mcp.NewToolResultError("Value generation is not configured: set OPENAI_API_KEY"), nil
	}

	var names []string
	for _, n := range req.GetStringSlice("field_names", nil) {
		if strings.TrimSpace(n) != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return mcp.NewToolResultError("'field_names' must list at least one field"), nil
	}

	values, err := t.gen.Generate(ctx, names, req.GetString("context", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate values: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"status":           "success",
		"generated_values": values,
		"fields_filled":    len(values),
	})
}
