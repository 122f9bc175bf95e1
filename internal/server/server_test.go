package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/formpilot/internal/config"
	"github.com/HendryAvila/formpilot/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = filepath.Join(t.TempDir(), "work")
	cfg.History.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.OpenAI.APIKey = ""
	return &cfg
}

func TestBuild_WithoutAPIKey(t *testing.T) {
	cfg := testConfig(t)

	c, cleanup, err := Build(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	if c.Runner == nil || c.Fetcher == nil || c.Forms == nil || c.Normalizer == nil {
		t.Fatalf("missing components: %+v", c)
	}
	if c.Runner.HasGenerator() {
		t.Error("runner should have no generator without an API key")
	}
	if c.generator != nil {
		t.Error("generator should be a nil interface")
	}
	if c.runs == nil {
		t.Error("history store should be open")
	}
	if _, err := os.Stat(filepath.Join(cfg.History.DataDir, "history.db")); err != nil {
		t.Errorf("history database not created: %v", err)
	}
	if _, err := os.Stat(cfg.WorkDir); err != nil {
		t.Errorf("work dir not created: %v", err)
	}
}

func TestBuild_WithAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAI.APIKey = "sk-test"
	cfg.History.Enabled = false

	c, cleanup, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	if !c.Runner.HasGenerator() {
		t.Error("runner should have a generator")
	}
	if c.runs != nil {
		t.Error("history should be disabled")
	}
}

func TestBuild_RulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	cfg.Normalize.RulesFile = filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(cfg.Normalize.RulesFile, []byte("default_year: \"1999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, cleanup, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	if got := c.Normalizer.Rules().DefaultYear; got != "1999" {
		t.Errorf("DefaultYear = %q, want 1999", got)
	}
}

func TestBuild_MissingRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Normalize.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	if _, _, err := Build(cfg, nil); err == nil {
		t.Error("expected error for a missing rules file")
	}
}

func TestNew_RegistersTools(t *testing.T) {
	s, cleanup, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cleanup()

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	for _, name := range []string{
		"parse_email",
		"download_pdf",
		"extract_form_fields",
		"generate_form_values",
		"normalize_form_values",
		"fill_pdf_form",
		"process_email_automation",
		"list_fill_history",
	} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestServerInstructions(t *testing.T) {
	text := serverInstructions()
	for _, want := range []string{"process_email_automation", "fill_pdf_form", "formpilot://history/recent"} {
		if !strings.Contains(text, want) {
			t.Errorf("instructions should mention %s", want)
		}
	}
}
