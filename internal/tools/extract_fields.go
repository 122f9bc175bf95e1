package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ExtractFieldsTool handles the extract_form_fields MCP tool.
type ExtractFieldsTool struct {
	forms FieldExtractor
}

// NewExtractFieldsTool creates an ExtractFieldsTool.
func NewExtractFieldsTool(forms FieldExtractor) *ExtractFieldsTool {
	return &ExtractFieldsTool{forms: forms}
}

// Definition returns the MCP tool definition for registration.
func (t *ExtractFieldsTool) Definition() mcp.Tool {
	return mcp.NewTool("extract_form_fields",
		mcp.WithDescription(
			"List the fillable form fields of a local PDF with their type, current value and page. "+
				"field_names keeps document order; pass the text-like ones to generate_form_values.",
		),
		mcp.WithString("pdf_path",
			mcp.Required(),
			mcp.Description("Local path of the PDF (as returned by download_pdf)"),
		),
	)
}

type fieldInfo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Page  int    `json:"page"`
}

// Handle processes the extract_form_fields tool call.
func (t *ExtractFieldsTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(req.GetString("pdf_path", ""))
	if path == "" {
		return mcp.NewToolResultError("'pdf_path' is required"), nil
	}

	fs, err := t.forms.ExtractFields(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to extract fields: %v", err)), nil
	}

	fields := make(map[string]fieldInfo, fs.Len())
	for _, f := range fs.Fields {
		fields[f.Name] = fieldInfo{Type: string(f.Type), Value: f.Value, Page: f.Page}
	}

	return jsonResult(map[string]any{
		"status":          "success",
		"filepath":        path,
		"num_fields":      fs.Len(),
		"fields":          fields,
		"field_names":     fs.Names(),
		"fillable_fields": nonNil(fs.TextNames()),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
