// Package resources implements MCP resource handlers for formpilot.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (formpilot://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/formpilot/internal/history"
	"github.com/HendryAvila/formpilot/internal/normalize"
)

// RecentURI addresses the recent runs resource.
const RecentURI = "formpilot://history/recent"

// RulesURI addresses the active normalization rules.
const RulesURI = "formpilot://normalize/rules"

// recentLimit is the number of runs served by the recent runs resource.
const recentLimit = 20

// RecentRuns lists the newest recorded runs.
type RecentRuns interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Handler manages formpilot resource endpoints.
type Handler struct {
	runs  RecentRuns
	rules *normalize.Rules
}

// NewHandler creates a resource Handler with its dependencies. runs may be
// nil when history is disabled.
func NewHandler(runs RecentRuns, rules *normalize.Rules) *Handler {
	return &Handler{runs: runs, rules: rules}
}

// RecentResource returns the MCP resource definition for recent runs.
func (h *Handler) RecentResource() mcp.Resource {
	return mcp.NewResource(
		RecentURI,
		"Recent form fill runs",
		mcp.WithResourceDescription("The most recent process_email_automation runs, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRecent returns the recent runs as JSON.
func (h *Handler) HandleRecent(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.runs == nil {
		return errorResource(req.Params.URI, "run history is disabled"), nil
	}

	runs, err := h.runs.Recent(ctx, recentLimit)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return jsonResource(req.Params.URI, runs)
}

// RulesResource returns the MCP resource definition for the normalization
// rules.
func (h *Handler) RulesResource() mcp.Resource {
	return mcp.NewResource(
		RulesURI,
		"Normalization rules",
		mcp.WithResourceDescription("Field naming patterns and defaults used when normalizing form values"),
		mcp.WithMIMEType("application/json"),
	)
}

type rulesView struct {
	Month           string               `json:"month_pattern"`
	YearDigit       string               `json:"year_digit_pattern"`
	Entities        []string             `json:"entity_patterns"`
	EntityAliases   map[string]string    `json:"entity_aliases"`
	YearSourceHints []string             `json:"year_source_hints"`
	DefaultYear     string               `json:"default_year"`
	Fallbacks       []normalize.Fallback `json:"fallbacks"`
	Placeholder     string               `json:"placeholder"`
}

// HandleRules returns the active rules as JSON.
func (h *Handler) HandleRules(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	r := h.rules
	if r == nil {
		r = normalize.DefaultRules()
	}

	view := rulesView{
		YearSourceHints: r.YearSourceHints,
		DefaultYear:     r.DefaultYear,
		Fallbacks:       r.Fallbacks,
		Placeholder:     r.Placeholder,
		EntityAliases:   r.EntityAliases,
		Entities:        make([]string, 0, len(r.Entities)),
	}
	if r.Month != nil {
		view.Month = r.Month.String()
	}
	if r.YearDigit != nil {
		view.YearDigit = r.YearDigit.String()
	}
	for _, re := range r.Entities {
		view.Entities = append(view.Entities, re.String())
	}
	return jsonResource(req.Params.URI, view)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
