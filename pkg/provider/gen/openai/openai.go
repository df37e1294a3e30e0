// Package openai provides a generator provider backed by an OpenAI vision
// model via the official SDK. It implements the gen.Provider interface.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/pagecoach/lectern/pkg/provider/gen"
)

const defaultModel = "gpt-4o-mini"

// config holds optional configuration for the provider.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel sets the model used for generation (must support image input).
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements gen.Provider using the OpenAI chat completions API
// with an inline data-URL image part.
type Provider struct {
	client oai.Client
	model  string
}

// Compile-time interface check.
var _ gen.Provider = (*Provider)(nil)

// New constructs a new OpenAI generator Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Generate implements gen.Provider.
func (p *Provider) Generate(ctx context.Context, req gen.Request) (string, error) {
	if len(req.ImagePNG) == 0 {
		return "", errors.New("openai: request has no page image")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG)

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage([]oai.ChatCompletionContentPartUnionParam{
				oai.TextContentPart(req.Instructions),
				oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", errors.New("openai: response contained no text")
	}
	return content, nil
}
