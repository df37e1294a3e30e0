package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pagecoach/lectern/pkg/provider/gen"
)

// DefaultTimeout bounds a single generator call.
const DefaultTimeout = 60 * time.Second

// GenerationError reports a failed narration build for a specific page.
type GenerationError struct {
	// Page is the 1-based page number the generation was for.
	Page int

	// Err is the underlying cause.
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate narration for page %d: %v", e.Page, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator adapts a gen.Provider into the page-narration step of the packet
// pipeline. Each call is bounded by its own timeout; failures carry the page
// number so the session layer can surface them.
type Generator struct {
	provider gen.Provider
	timeout  time.Duration
}

// NewGenerator wraps provider. A non-positive timeout selects DefaultTimeout.
func NewGenerator(provider gen.Provider, timeout time.Duration) (*Generator, error) {
	if provider == nil {
		return nil, errors.New("script: provider must not be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{provider: provider, timeout: timeout}, nil
}

// Narrate asks the generator to narrate one page image and parses the
// response into display and voice scripts. All failures, including an empty
// model response, come back as a *GenerationError for page.
func (g *Generator) Narrate(ctx context.Context, page int, instructions string, imagePNG []byte) (Script, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.provider.Generate(ctx, gen.Request{
		Instructions: instructions,
		ImagePNG:     imagePNG,
	})
	if err != nil {
		return Script{}, &GenerationError{Page: page, Err: err}
	}
	if raw == "" {
		return Script{}, &GenerationError{Page: page, Err: errors.New("empty response")}
	}

	return Parse(raw), nil
}
