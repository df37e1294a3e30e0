// Package mock provides a test double for the speech.Provider interface.
//
// Use Provider to feed controlled audio and boundary events to consumers and
// to verify the text and voice passed to the backend:
//
//	p := &mock.Provider{
//	    Events: []speech.Event{{Audio: mp3Bytes}},
//	}
//	ch, _ := p.Synthesize(ctx, "hello", speech.Voice{ID: "v1"})
package mock

import (
	"context"
	"sync"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the voice passed to Synthesize.
	Voice speech.Voice
}

// Provider is a mock implementation of speech.Provider.
type Provider struct {
	mu sync.Mutex

	// Events is the sequence emitted on the channel returned by Synthesize.
	Events []speech.Event

	// Err, if non-nil, is returned from Synthesize instead of a channel.
	Err error

	// Delay, if set, blocks event delivery until the context is cancelled or
	// the delay elapses. Used to simulate slow synthesis in timeout tests.
	Delay <-chan struct{}

	// Calls records every Synthesize invocation in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and, if Err is nil, returns a channel that
// emits Events then closes.
func (p *Provider) Synthesize(ctx context.Context, text string, voice speech.Voice) (<-chan speech.Event, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Text: text, Voice: voice})
	err := p.Err
	events := make([]speech.Event, len(p.Events))
	copy(events, p.Events)
	delay := p.Delay
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan speech.Event, len(events))
	go func() {
		defer close(ch)
		if delay != nil {
			select {
			case <-delay:
			case <-ctx.Done():
				return
			}
		}
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Compile-time interface check.
var _ speech.Provider = (*Provider)(nil)
