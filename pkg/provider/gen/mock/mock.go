// Package mock provides a test double for the gen.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/pagecoach/lectern/pkg/provider/gen"
)

// Provider is a mock implementation of gen.Provider.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Generate when Err is nil. When Responses is
	// non-empty it takes precedence and calls consume it in order, repeating
	// the final element once exhausted.
	Response  string
	Responses []string

	// Err, if non-nil, is returned by every Generate call.
	Err error

	// Block, if set, makes Generate wait for the channel or ctx before
	// returning. Used to simulate slow generation in timeout tests.
	Block <-chan struct{}

	// Calls records every request passed to Generate in order.
	Calls []gen.Request
}

// Generate records the call and returns the configured response.
func (p *Provider) Generate(ctx context.Context, req gen.Request) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	n := len(p.Calls)
	resp := p.Response
	if len(p.Responses) > 0 {
		idx := n - 1
		if idx >= len(p.Responses) {
			idx = len(p.Responses) - 1
		}
		resp = p.Responses[idx]
	}
	err := p.Err
	block := p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Compile-time interface check.
var _ gen.Provider = (*Provider)(nil)
