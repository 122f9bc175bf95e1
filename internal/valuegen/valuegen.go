// Package valuegen asks a chat completion model to invent plausible values
// for the fields of a form.
package valuegen

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"github.com/HendryAvila/formpilot/internal/logging"
)

const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 20 * time.Second
)

var (
	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("OpenAI API key is not configured")
	// ErrNoFields is returned when there is nothing to generate.
	ErrNoFields = errors.New("no field names given")
	// ErrBadResponse is returned when the model reply is not a JSON object.
	ErrBadResponse = errors.New("model did not return a JSON object")
)

// Options configures a Generator.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the base delay between retries.
	Backoff time.Duration
	Logger  *log.Logger
}

// apiClient is the subset of the OpenAI client used here.
type apiClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces form values with a chat completion model.
type Generator struct {
	client     apiClient
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
}

// New creates a Generator backed by the OpenAI API.
func New(opts Options) (*Generator, error) {
	if opts.APIKey == "" {
		return nil, goerr.Wrap(ErrMissingAPIKey, "failed to create value generator")
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}

	return newGenerator(openai.NewClientWithConfig(config), opts), nil
}

func newGenerator(client apiClient, opts Options) *Generator {
	g := &Generator{
		client:     client,
		model:      opts.Model,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}
	if g.model == "" {
		g.model = DefaultModel
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.maxRetries < 0 {
		g.maxRetries = 0
	}
	if g.backoff <= 0 {
		g.backoff = 500 * time.Millisecond
	}
	if g.logger == nil {
		g.logger = logging.Discard()
	}
	return g
}

// Model returns the model name requests are sent to.
func (g *Generator) Model() string {
	return g.model
}

// Generate returns a value for each of fields. docText, when not empty, is
// appended to the prompt as context. Values in the reply are coerced to
// strings; keys the model adds beyond fields are kept.
func (g *Generator) Generate(ctx context.Context, fields []string, docText string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, goerr.Wrap(ErrNoFields, "failed to generate values")
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(fields, docText)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	backoff := retry.WithMaxRetries(uint64(g.maxRetries), retry.NewExponential(g.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			if isTransient(err) {
				g.logger.Warn("chat completion failed, retrying", "model", g.model, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		if len(resp.Choices) == 0 {
			return goerr.Wrap(ErrBadResponse, "empty choices", goerr.V("model", g.model))
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate values", goerr.V("model", g.model), goerr.V("fields", len(fields)))
	}

	values, err := ParseValues(content)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generated form values", "model", g.model, "requested", len(fields), "returned", len(values))
	return values, nil
}

// ParseValues decodes a JSON object reply into string values. Strings are
// kept as-is, numbers keep their literal text, booleans become "true" or
// "false", null becomes "" and nested values keep their JSON encoding.
func ParseValues(content string) (map[string]string, error) {
	if !gjson.Valid(content) {
		return nil, goerr.Wrap(ErrBadResponse, "invalid JSON", goerr.V("content", content))
	}
	doc := gjson.Parse(content)
	if !doc.IsObject() {
		return nil, goerr.Wrap(ErrBadResponse, "not an object", goerr.V("content", content))
	}

	values := make(map[string]string)
	doc.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String:
			values[key.String()] = value.String()
		case gjson.Null:
			values[key.String()] = ""
		case gjson.True, gjson.False:
			values[key.String()] = value.String()
		default:
			values[key.String()] = value.Raw
		}
		return true
	})
	return values, nil
}

// isTransient reports whether a completion error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
