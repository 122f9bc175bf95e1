// Package tools implements the MCP tool handlers of formpilot.
//
// Each tool is a struct that receives its collaborators through its
// constructor and exposes Definition and Handle for registration with
// mcp-go. Collaborators are consumed through the small interfaces below so
// handlers can be tested with fakes.
//
// Results are JSON documents returned as text content. Failures the caller
// can act on are returned as tool errors (IsError), never as Go errors.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/formpilot/internal/fetch"
	"github.com/HendryAvila/formpilot/internal/history"
	"github.com/HendryAvila/formpilot/internal/pdfform"
	"github.com/HendryAvila/formpilot/internal/pipeline"
	"github.com/HendryAvila/formpilot/internal/valuegen"
)

// Downloader saves a PDF from a URL.
type Downloader interface {
	DownloadPDF(ctx context.Context, url string) (*fetch.Download, error)
}

// DocumentFetcher retrieves a JSON document.
type DocumentFetcher interface {
	GetJSON(ctx context.Context, url string) ([]byte, error)
}

// FieldExtractor lists the form fields of a PDF.
type FieldExtractor interface {
	ExtractFields(path string) (*pdfform.FieldSet, error)
}

// ValueGenerator invents values for form fields.
type ValueGenerator interface {
	Generate(ctx context.Context, fields []string, docText string) (map[string]string, error)
}

// FormFiller normalizes values and writes them into a PDF.
type FormFiller interface {
	FillForm(ctx context.Context, pdfPath string, values map[string]string) (*pipeline.FillResult, error)
}

// EmailProcessor runs the complete automation.
type EmailProcessor interface {
	Process(ctx context.Context, emailURL string) (*pipeline.Result, error)
}

// RunLog reads the run history.
type RunLog interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
	Search(ctx context.Context, query string, limit int) ([]history.Run, error)
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringValues converts a tool argument holding a JSON object (or its
// encoded form) into string values.
func stringValues(raw any) (map[string]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("missing object")
	case string:
		return valuegen.ParseValues(v)
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding values: %w", err)
		}
		return valuegen.ParseValues(string(data))
	default:
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}
}
