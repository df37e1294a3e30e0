package narrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

// DefaultTimeout bounds a single synthesis call end to end, including
// streaming the full audio.
const DefaultTimeout = 60 * time.Second

// SynthesisError reports a failed speech build for a specific page.
type SynthesisError struct {
	// Page is the 1-based page number the synthesis was for.
	Page int

	// Err is the underlying cause.
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize speech for page %d: %v", e.Page, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Narration is the collected result of one synthesis call.
type Narration struct {
	// Text is the sanitized voice text that was actually synthesized. The
	// caption segmenter must run on exactly this text.
	Text string

	// Audio is the complete MP3 stream.
	Audio []byte

	// Boundaries are the word-boundary events, in playback order. Empty when
	// the provider does not report them.
	Boundaries []speech.WordBoundary

	// Duration is the playback length. It comes from the MP3 frames
	// themselves; boundary events only serve as a fallback when the frames
	// cannot be decoded.
	Duration time.Duration
}

// Synthesizer adapts a speech.Provider into the packet pipeline.
type Synthesizer struct {
	provider speech.Provider
	voice    speech.Voice
	timeout  time.Duration
}

// NewSynthesizer wraps provider with the session's voice settings. A
// non-positive timeout selects DefaultTimeout.
func NewSynthesizer(provider speech.Provider, voice speech.Voice, timeout time.Duration) (*Synthesizer, error) {
	if provider == nil {
		return nil, errors.New("narrate: provider must not be nil")
	}
	if voice.ID == "" {
		return nil, errors.New("narrate: voice.ID must not be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Synthesizer{provider: provider, voice: voice, timeout: timeout}, nil
}

// Speak synthesizes text (already sanitized by the caller) and drains the
// event stream into a Narration. All failures, including mid-stream ones and
// an empty audio result, come back as a *SynthesisError for page.
func (s *Synthesizer) Speak(ctx context.Context, page int, text string) (*Narration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	events, err := s.provider.Synthesize(ctx, text, s.voice)
	if err != nil {
		return nil, &SynthesisError{Page: page, Err: err}
	}

	n := &Narration{Text: text}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil && len(n.Audio) == 0 {
					return nil, &SynthesisError{Page: page, Err: err}
				}
				return s.finish(page, n)
			}
			switch {
			case ev.Err != nil:
				return nil, &SynthesisError{Page: page, Err: ev.Err}
			case ev.Boundary != nil:
				n.Boundaries = append(n.Boundaries, *ev.Boundary)
			case len(ev.Audio) > 0:
				n.Audio = append(n.Audio, ev.Audio...)
			}
		case <-ctx.Done():
			return nil, &SynthesisError{Page: page, Err: ctx.Err()}
		}
	}
}

// finish validates the collected narration and fills in the duration.
func (s *Synthesizer) finish(page int, n *Narration) (*Narration, error) {
	if len(n.Audio) == 0 {
		return nil, &SynthesisError{Page: page, Err: errors.New("stream ended with no audio")}
	}

	dur, err := audioDuration(n.Audio)
	if err != nil {
		if len(n.Boundaries) == 0 {
			return nil, &SynthesisError{Page: page, Err: fmt.Errorf("duration unknown: %w", err)}
		}
		last := n.Boundaries[len(n.Boundaries)-1]
		dur = last.Offset + last.Duration
		slog.Warn("falling back to boundary-derived audio duration",
			"page", page, "duration", dur, "decode_error", err)
	}
	n.Duration = dur
	return n, nil
}
