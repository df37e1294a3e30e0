// Package gemini provides a generator provider backed by the Google Gemini
// API via google.golang.org/genai. It implements the gen.Provider interface.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pagecoach/lectern/pkg/provider/gen"
)

const defaultModel = "gemini-2.0-flash"

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for generation.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// Provider implements gen.Provider for the Gemini API.
//
// The genai client is created lazily on the first Generate call so that the
// API key — which may only arrive when a session starts — is bound at use
// time, not construction time.
type Provider struct {
	apiKey string
	model  string
}

// Compile-time interface check.
var _ gen.Provider = (*Provider)(nil)

// New creates a new Gemini Provider with the given API key and options.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	p := &Provider{
		apiKey: apiKey,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Generate implements gen.Provider. It sends the page image and instructions
// as a single user turn and concatenates all text parts of the first
// candidate.
func (p *Provider) Generate(ctx context.Context, req gen.Request) (string, error) {
	if len(req.ImagePNG) == 0 {
		return "", errors.New("gemini: request has no page image")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Instructions),
			genai.NewPartFromBytes(req.ImagePNG, "image/png"),
		}, genai.RoleUser),
	}

	result, err := client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("gemini: response contained no text parts")
	}
	// NBSP shows up in model output and confuses downstream segmentation.
	return strings.ReplaceAll(sb.String(), " ", " "), nil
}
