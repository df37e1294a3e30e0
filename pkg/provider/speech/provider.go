// Package speech defines the Provider interface for speech-synthesis backends.
//
// A speech provider wraps a TTS service (e.g., Microsoft Edge's read-aloud
// endpoint or ElevenLabs) and presents a uniform streaming interface. The
// primary entry point is Synthesize, which returns a channel of [Event]
// values: audio chunks interleaved with optional word-boundary timing events.
// Callers accumulate the audio and, when boundary events are present, derive
// an exact caption timeline from them.
//
// Implementations must be safe for concurrent use.
package speech

import (
	"context"
	"time"
)

// Voice selects the synthesiser voice and prosody for a request.
type Voice struct {
	// ID is the provider-specific voice identifier
	// (e.g., "zh-TW-HsiaoChenNeural" for Edge, a voice UUID for ElevenLabs).
	ID string

	// Rate adjusts the speaking rate as a signed percentage string
	// (e.g., "-2%", "+10%"). Empty means the provider default.
	Rate string

	// Volume adjusts output volume as a signed percentage string.
	// Empty means the provider default.
	Volume string
}

// WordBoundary is a word-level timing event emitted during synthesis.
// Offsets are measured from the start of the audio stream.
type WordBoundary struct {
	// Text is the word or phrase the event covers.
	Text string

	// Offset is when the word starts within the audio.
	Offset time.Duration

	// Duration is how long the word is spoken.
	Duration time.Duration
}

// Event is a single item emitted by [Provider.Synthesize]. Exactly one of
// Audio, Boundary, or Err is set.
type Event struct {
	// Audio is a chunk of encoded audio (MP3 unless the provider documents
	// otherwise). Nil for non-audio events.
	Audio []byte

	// Boundary is a word-boundary timing event, for providers that expose
	// them. Nil otherwise.
	Boundary *WordBoundary

	// Err reports a mid-stream synthesis failure. When set it is the final
	// event before the channel closes; any audio received earlier must be
	// considered incomplete.
	Err error
}

// Provider is the abstraction over any speech-synthesis backend.
//
// Implementations must be safe for concurrent use; multiple synthesis
// requests may run in parallel (e.g., the current page and a prefetched one).
type Provider interface {
	// Synthesize speaks text with the given voice and returns a channel of
	// events. The channel is closed by the implementation when synthesis
	// completes, fails (after an Err event), or ctx is cancelled. The caller
	// must drain the channel.
	//
	// A non-nil error is returned only when the stream cannot be started at
	// all (bad voice, dial failure); mid-stream failures arrive as Err events.
	Synthesize(ctx context.Context, text string, voice Voice) (<-chan Event, error)
}
