package resilience

import (
	"context"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

// SpeechFallback implements [speech.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own circuit breaker.
//
// Only the initial stream setup is covered by failover: once a backend has
// returned an event channel, mid-stream errors surface to the caller as
// usual. Re-synthesizing half-delivered audio would desynchronise captions
// that were segmented for the first backend's stream.
type SpeechFallback struct {
	group *FallbackGroup[speech.Provider]
}

// Compile-time interface assertion.
var _ speech.Provider = (*SpeechFallback)(nil)

// NewSpeechFallback creates a [SpeechFallback] with primary as the preferred
// backend.
func NewSpeechFallback(primary speech.Provider, primaryName string, cfg FallbackConfig) *SpeechFallback {
	return &SpeechFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional speech provider as a fallback.
func (f *SpeechFallback) AddFallback(name string, provider speech.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize starts synthesis on the first healthy provider.
func (f *SpeechFallback) Synthesize(ctx context.Context, text string, voice speech.Voice) (<-chan speech.Event, error) {
	return ExecuteWithResult(f.group, func(p speech.Provider) (<-chan speech.Event, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
