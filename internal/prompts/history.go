package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// HistoryPrompt handles the fill-history MCP prompt.
// It instructs the AI to read and summarize past automation runs.
type HistoryPrompt struct{}

// NewHistoryPrompt creates a HistoryPrompt.
func NewHistoryPrompt() *HistoryPrompt {
	return &HistoryPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *HistoryPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("fill-history",
		mcp.WithPromptDescription(
			"Review recent form fill runs: what was filled, what failed and why.",
		),
	)
}

// Handle processes the fill-history prompt request.
func (p *HistoryPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Form fill history",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `list_fill_history` to see my recent form fill runs.\n\n" +
						"Then:\n" +
						"1. Show the runs as a short table: date, subject, status, fields filled\n" +
						"2. Point out failed runs and what their message says\n" +
						"3. Suggest how to retry any failed run",
				),
			},
		},
	}, nil
}
