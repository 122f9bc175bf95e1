package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/formpilot/internal/normalize"
)

// NormalizeTool handles the normalize_form_values MCP tool. It exposes the
// normalization step on its own so a caller can inspect what fill_pdf_form
// would write.
type NormalizeTool struct {
	norm *normalize.Normalizer
}

// NewNormalizeTool creates a NormalizeTool.
func NewNormalizeTool(norm *normalize.Normalizer) *NormalizeTool {
	return &NormalizeTool{norm: norm}
}

// Definition returns the MCP tool definition for registration.
func (t *NormalizeTool) Definition() mcp.Tool {
	return mcp.NewTool("normalize_form_values",
		mcp.WithDescription(
			"Normalize generated values against a form's field names without writing a PDF. "+
				"Returns the final value for every field, the fields a model should be asked for "+
				"and the role assigned to each field.",
		),
		mcp.WithArray("field_names",
			mcp.Required(),
			mcp.Description("All field names of the form, in document order"),
			mcp.WithStringItems(),
		),
		mcp.WithObject("field_values",
			mcp.Description("Mapping of field name to raw value (may be empty)"),
		),
	)
}

type fieldRole struct {
	Role   string `json:"role"`
	Entity string `json:"entity,omitempty"`
	Index  int    `json:"entity_index,omitempty"`
	Slot   string `json:"entity_slot,omitempty"`
}

// Handle processes the normalize_form_values tool call.
func (t *NormalizeTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := req.GetStringSlice("field_names", nil)
	if len(names) == 0 {
		return mcp.NewToolResultError("'field_names' must list at least one field"), nil
	}

	raw := map[string]string{}
	if v, ok := req.GetArguments()["field_values"]; ok && v != nil {
		parsed, err := stringValues(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'field_values' must be an object: %v", err)), nil
		}
		raw = parsed
	}

	rules := t.norm.Rules()
	roles := make(map[string]fieldRole, len(names))
	for _, f := range rules.Classify(names) {
		roles[f.Name] = fieldRole{
			Role:   f.Role.String(),
			Entity: f.Entity,
			Index:  f.EntityIndex,
			Slot:   f.EntitySlot,
		}
	}

	return jsonResult(map[string]any{
		"status":             "success",
		"field_values":       t.norm.Normalize(names, raw),
		"generation_targets": nonNil(rules.GenerationTargets(names)),
		"roles":              roles,
	})
}
