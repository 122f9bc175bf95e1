// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/formpilot/internal/config"
	"github.com/HendryAvila/formpilot/internal/fetch"
	"github.com/HendryAvila/formpilot/internal/history"
	"github.com/HendryAvila/formpilot/internal/logging"
	"github.com/HendryAvila/formpilot/internal/normalize"
	"github.com/HendryAvila/formpilot/internal/pdfform"
	"github.com/HendryAvila/formpilot/internal/pipeline"
	"github.com/HendryAvila/formpilot/internal/prompts"
	"github.com/HendryAvila/formpilot/internal/resources"
	"github.com/HendryAvila/formpilot/internal/tools"
	"github.com/HendryAvila/formpilot/internal/valuegen"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Components are the concrete collaborators built from a Config. They are
// shared by the MCP server and the command-line runner.
type Components struct {
	Fetcher    *fetch.Client
	Forms      *pdfform.Processor
	Normalizer *normalize.Normalizer
	Runner     *pipeline.Runner

	// generator and runs are nil when the subsystem is disabled.
	generator tools.ValueGenerator
	runs      *history.Store
}

// Build resolves every dependency described by cfg.
//
// The returned cleanup function closes the history database and must be
// called on shutdown (typically via defer). It is always non-nil and safe
// to call even if history init failed.
func Build(cfg *config.Config, logger *log.Logger) (*Components, func(), error) {
	if logger == nil {
		logger = logging.Discard()
	}

	fetcher, err := fetch.New(fetch.Options{
		WorkDir:      cfg.WorkDir,
		Timeout:      cfg.HTTP.Timeout,
		Retries:      cfg.HTTP.Retries,
		UserAgent:    cfg.HTTP.UserAgent,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Logger:       logger,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("creating fetcher: %w", err)
	}

	rules := normalize.DefaultRules()
	if cfg.Normalize.RulesFile != "" {
		rules, err = normalize.LoadRules(cfg.Normalize.RulesFile)
		if err != nil {
			return nil, noop, fmt.Errorf("loading normalization rules: %w", err)
		}
	}

	c := &Components{
		Fetcher:    fetcher,
		Forms:      pdfform.New(logger),
		Normalizer: normalize.New(rules),
	}

	// Value generation is optional: without a key the step-by-step tools
	// still work and the automation reports a clear error.
	var gen pipeline.Generator
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("value generation disabled: OPENAI_API_KEY is not set")
	} else {
		g, err := valuegen.New(valuegen.Options{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			BaseURL:    cfg.OpenAI.BaseURL,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: cfg.OpenAI.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("creating value generator: %w", err)
		}
		gen = g
		c.generator = g
	}

	// History is an independent subsystem: if it fails to initialize the
	// pipeline keeps working without recording runs.
	cleanup := noop
	var recorder pipeline.Recorder
	if cfg.History.Enabled {
		hcfg := history.DefaultConfig()
		if cfg.History.DataDir != "" {
			hcfg.DataDir = cfg.History.DataDir
		}
		store, err := history.New(hcfg)
		if err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			c.runs = store
			recorder = store
			cleanup = func() {
				if err := store.Close(); err != nil {
					logger.Warn("history store close", "error", err)
				}
			}
		}
	}

	c.Runner = pipeline.New(pipeline.Deps{
		Fetcher:      fetcher,
		Forms:        c.Forms,
		Generator:    gen,
		Normalizer:   c.Normalizer,
		History:      recorder,
		Logger:       logger,
		ContextChars: cfg.OpenAI.ContextChars,
	})

	return c, cleanup, nil
}

// New creates and configures the MCP server with all tools, prompts and
// resources registered. This is the single place where all dependencies
// are resolved.
func New(cfg *config.Config, logger *log.Logger) (*server.MCPServer, func(), error) {
	c, cleanup, err := Build(cfg, logger)
	if err != nil {
		return nil, noop, err
	}

	s := server.NewMCPServer(
		"formpilot",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	register(s, c)
	return s, cleanup, nil
}

// noop is a no-op cleanup function used when history is disabled.
func noop() {}

func register(s *server.MCPServer, c *Components) {
	// --- Step-by-step tools ---

	parseTool := tools.NewParseEmailTool(c.Fetcher)
	s.AddTool(parseTool.Definition(), parseTool.Handle)

	downloadTool := tools.NewDownloadTool(c.Fetcher)
	s.AddTool(downloadTool.Definition(), downloadTool.Handle)

	extractTool := tools.NewExtractFieldsTool(c.Forms)
	s.AddTool(extractTool.Definition(), extractTool.Handle)

	generateTool := tools.NewGenerateTool(c.generator)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	normalizeTool := tools.NewNormalizeTool(c.Normalizer)
	s.AddTool(normalizeTool.Definition(), normalizeTool.Handle)

	fillTool := tools.NewFillTool(c.Runner)
	s.AddTool(fillTool.Definition(), fillTool.Handle)

	// --- Automation ---

	processTool := tools.NewProcessTool(c.Runner)
	s.AddTool(processTool.Definition(), processTool.Handle)

	var runLog tools.RunLog
	var recent resources.RecentRuns
	if c.runs != nil {
		runLog = c.runs
		recent = c.runs
	}
	historyTool := tools.NewHistoryTool(runLog)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	// --- Prompts ---

	fillPrompt := prompts.NewFillEmailPrompt()
	s.AddPrompt(fillPrompt.Definition(), fillPrompt.Handle)

	historyPrompt := prompts.NewHistoryPrompt()
	s.AddPrompt(historyPrompt.Definition(), historyPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(recent, c.Normalizer.Rules())
	s.AddResource(resourceHandler.RecentResource(), resourceHandler.HandleRecent)
	s.AddResource(resourceHandler.RulesResource(), resourceHandler.HandleRules)
}

// serverInstructions returns the system instructions that tell the AI how
// to use formpilot.
func serverInstructions() string {
	return `You have access to formpilot, a PDF form auto-fill server.

## WHEN TO USE formpilot

Use formpilot when the user wants a PDF form that arrived by email filled in
with realistic sample values: bills of sale, registrations, applications.

## ONE-SHOT AUTOMATION

Call process_email_automation with the URL of the email JSON document. It
parses the email, downloads the first PDF attachment, extracts the form
fields, generates values, normalizes them and writes <name>_filled.pdf.
The result carries the output path and the filled PDF as base64.

A result with status "info" means the PDF has no fillable text fields.
Nothing was filled; tell the user instead of retrying.

## STEP BY STEP

When the user wants to review values first:
1. parse_email: sender, subject and PDF links
2. download_pdf: save the PDF locally
3. extract_form_fields: list fields; use fillable_fields for the next step
4. normalize_form_values: with all field names and no values, its
   generation_targets are the fields worth asking the model about
5. generate_form_values: invent values for those fields
6. fill_pdf_form: write the values; normalization runs again here

## NORMALIZATION RULES

fill_pdf_form always normalizes, so do not pre-format values:
- Month names become two-digit numbers ("March" -> "03")
- A 4-digit year is split across Year-1..Year-4 style digit boxes
- A second seller/buyer block identical to the first is cleared
- Fields left without a value get deterministic defaults

## HISTORY

list_fill_history (or the formpilot://history/recent resource) shows past
automation runs. Use its query argument to search by subject, sender or file.`
}
