// Package config loads formpilot's runtime configuration.
//
// Sources, lowest precedence first: built-in defaults, a .env file in the
// working directory, then process environment. Variables use the
// FORMPILOT_ prefix with the first underscore separating the section
// (FORMPILOT_OPENAI_MODEL -> openai.model). OPENAI_API_KEY and PORT are
// accepted unprefixed for compatibility with common deployment setups.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of formpilot environment variables.
const EnvPrefix = "FORMPILOT_"

// Transport selects how the MCP server is exposed.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	WorkDir   string          `koanf:"work_dir"`
	HTTP      HTTPConfig      `koanf:"http"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	History   HistoryConfig   `koanf:"history"`
	Normalize NormalizeConfig `koanf:"normalize"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig controls the MCP transport.
type ServerConfig struct {
	Transport Transport `koanf:"transport"`
	Host      string    `koanf:"host"`
	Port      int       `koanf:"port"`
}

// Addr returns host:port for the HTTP transport.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HTTPConfig controls outbound fetches of emails and PDFs.
type HTTPConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	Retries   int           `koanf:"retries"`
	UserAgent string        `koanf:"user_agent"`
	// MaxBodyBytes caps the size of a fetched email or PDF.
	MaxBodyBytes int `koanf:"max_body_bytes"`
}

// OpenAIConfig controls the value generator.
type OpenAIConfig struct {
	APIKey     string        `koanf:"api_key"`
	Model      string        `koanf:"model"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	// ContextChars caps how much document text is added to the prompt.
	// Zero disables document context.
	ContextChars int `koanf:"context_chars"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	DataDir string `koanf:"data_dir"`
}

// NormalizeConfig points at an optional rules file.
type NormalizeConfig struct {
	RulesFile string `koanf:"rules_file"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "0.0.0.0",
			Port:      8000,
		},
		WorkDir: filepath.Join(os.TempDir(), "formpilot"),
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			Retries:      2,
			UserAgent:    "formpilot",
			MaxBodyBytes: 25 << 20,
		},
		OpenAI: OpenAIConfig{
			Model:        "gpt-4o-mini",
			Timeout:      20 * time.Second,
			MaxRetries:   2,
			ContextChars: 2000,
		},
		History: HistoryConfig{
			Enabled: true,
			DataDir: filepath.Join(home, ".formpilot"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// aliases maps unprefixed variables to config keys.
var aliases = map[string]string{
	"OPENAI_API_KEY": "openai.api_key",
	"PORT":           "server.port",
}

// Load builds the configuration from defaults, the .env file in dir (if
// any) and the environment. An empty dir means the working directory.
func Load(dir string) (*Config, error) {
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv reads dir/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// transformEnv maps an environment variable to a config key. Variables
// that are not formpilot settings map to "" and are skipped.
func transformEnv(key, value string) (string, any) {
	if path, ok := aliases[key]; ok {
		// An explicit FORMPILOT_ variable wins over the alias.
		prefixed := EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
		if _, set := os.LookupEnv(prefixed); set {
			return "", nil
		}
		return path, value
	}
	if !strings.HasPrefix(key, EnvPrefix) {
		return "", nil
	}
	return envKeyToPath(strings.TrimPrefix(key, EnvPrefix)), value
}

// envKeyToPath converts OPENAI_MAX_RETRIES to openai.max_retries and
// WORK_DIR to work_dir.
func envKeyToPath(s string) string {
	s = strings.ToLower(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	if _, ok := topLevelScalars[strings.Join(parts, "_")]; ok {
		return strings.Join(parts, "_")
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

// topLevelScalars are keys that live at the root and contain underscores.
var topLevelScalars = map[string]struct{}{
	"work_dir": {},
}

// Validate reports configuration errors that would prevent the server
// from starting.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.WorkDir == "" {
		return errors.New("work_dir is required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must not be negative, got %d", c.HTTP.Retries)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive, got %d", c.HTTP.MaxBodyBytes)
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive, got %s", c.OpenAI.Timeout)
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai.max_retries must not be negative, got %d", c.OpenAI.MaxRetries)
	}
	return nil
}
