// Package prompts implements MCP prompt handlers for formpilot.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a sequence of tools. Unlike tools (which the AI
// calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// FillEmailPrompt handles the fill-email-form MCP prompt.
// It guides the AI through filling the PDF form attached to an email.
type FillEmailPrompt struct{}

// NewFillEmailPrompt creates a FillEmailPrompt.
func NewFillEmailPrompt() *FillEmailPrompt {
	return &FillEmailPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *FillEmailPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("fill-email-form",
		mcp.WithPromptDescription(
			"Fill the PDF form attached to an email. "+
				"Runs the one-shot automation, or walks through each step when 'step_by_step' is set.",
		),
		mcp.WithArgument("email_json_url",
			mcp.ArgumentDescription("URL of the email JSON document"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("step_by_step",
			mcp.ArgumentDescription("'yes' to review extracted fields and generated values before filling. Default: no"),
		),
	)
}

// Handle processes the fill-email-form prompt request.
func (p *FillEmailPrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	url := ""
	stepByStep := false
	if args := req.Params.Arguments; args != nil {
		url = strings.TrimSpace(args["email_json_url"])
		switch strings.ToLower(strings.TrimSpace(args["step_by_step"])) {
		case "yes", "y", "true", "1":
			stepByStep = true
		}
	}
	if url == "" {
		return nil, fmt.Errorf("email_json_url is required")
	}

	var text string
	if stepByStep {
		text = fmt.Sprintf(
			"Fill the PDF form attached to the email at %s, one step at a time.\n\n"+
				"Please:\n"+
				"1. Run `parse_email` with email_json_url='%s' and show me the sender, subject and PDF links\n"+
				"2. Run `download_pdf` with the first PDF link\n"+
				"3. Run `extract_form_fields` on the downloaded file and list the fillable fields\n"+
				"4. Run `normalize_form_values` with all field names and no values to see which fields need generated values\n"+
				"5. Run `generate_form_values` for those fields and show me the values before going on\n"+
				"6. Once I confirm, run `fill_pdf_form` with the values and tell me where the filled PDF was saved",
			url, url,
		)
	} else {
		text = fmt.Sprintf(
			"Please run `process_email_automation` with email_json_url='%s'.\n\n"+
				"Then:\n"+
				"1. Tell me where the filled PDF was saved and how many fields were filled\n"+
				"2. If the status is 'info' or the run failed, explain the message and suggest the step-by-step tools",
			url,
		)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Fill email form: %s", url),
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
