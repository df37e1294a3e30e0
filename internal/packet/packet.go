// Package packet builds self-contained page packets: rendered page image,
// display script, synthesized narration audio, and a timed caption track.
package packet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagecoach/lectern/internal/caption"
	"github.com/pagecoach/lectern/internal/narrate"
	"github.com/pagecoach/lectern/internal/observe"
	"github.com/pagecoach/lectern/internal/script"
	"github.com/pagecoach/lectern/pkg/doc"
)

// Packet is everything needed to present one page. Immutable once built.
type Packet struct {
	// Page is the 1-based page number.
	Page int

	// Image is the rendered page, PNG-encoded.
	Image []byte

	// DisplayText is the full annotated script shown on screen.
	DisplayText string

	// VoiceText is the sanitized narration text that was synthesized. The
	// captions derive from exactly this text.
	VoiceText string

	// Audio is the narration MP3.
	Audio []byte

	// Captions is the ordered caption sequence, never empty.
	Captions []string

	// Timing is the caption track: exact cues when the synthesizer reported
	// word boundaries, a uniform interval otherwise.
	Timing caption.Track

	// AudioDuration is the narration playback length.
	AudioDuration time.Duration

	// Degraded marks a packet whose generator response carried no voice
	// markers, so display and voice text are the same.
	Degraded bool
}

// Assets supplies the build-time text assets. Implementations may hot-reload
// behind this interface; the builder re-reads them on every build.
type Assets interface {
	// Prompt returns the instruction prompt for the generator.
	Prompt() string

	// PageLead returns the per-page lead-in appended to the prompt.
	PageLead(page int) string

	// Pronunciations returns the replacement table applied before synthesis.
	Pronunciations() []narrate.Replacement
}

// Builder runs the render → generate → synthesize → segment pipeline for one
// page at a time. It performs no retries; retry policy belongs to the session
// layer. Safe for concurrent use.
type Builder struct {
	generator   *script.Generator
	synthesizer *narrate.Synthesizer
	assets      Assets
	metrics     *observe.Metrics

	scale       float64
	minInterval time.Duration
}

// Option is a functional option for the Builder.
type Option func(*Builder)

// WithScale sets the page render scale factor (default 2.0).
func WithScale(scale float64) Option {
	return func(b *Builder) { b.scale = scale }
}

// WithMinCaptionInterval sets the floor for uniform caption intervals.
func WithMinCaptionInterval(d time.Duration) Option {
	return func(b *Builder) { b.minInterval = d }
}

// WithMetrics sets the metrics instance (default observe.DefaultMetrics).
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder wires the pipeline stages together.
func NewBuilder(generator *script.Generator, synthesizer *narrate.Synthesizer, assets Assets, opts ...Option) (*Builder, error) {
	if generator == nil {
		return nil, errors.New("packet: generator must not be nil")
	}
	if synthesizer == nil {
		return nil, errors.New("packet: synthesizer must not be nil")
	}
	if assets == nil {
		return nil, errors.New("packet: assets must not be nil")
	}

	b := &Builder{
		generator:   generator,
		synthesizer: synthesizer,
		assets:      assets,
		scale:       2.0,
		minInterval: caption.DefaultMinInterval,
	}
	for _, o := range opts {
		o(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}
	return b, nil
}

// Build produces the packet for the given 1-based page of an open document.
//
// A page beyond the document's range returns doc.ErrPageOutOfRange before any
// generator or synthesizer call is made. Generator and synthesizer failures
// propagate as *script.GenerationError and *narrate.SynthesisError.
func (b *Builder) Build(ctx context.Context, document doc.Document, page int) (*Packet, error) {
	ctx, span := observe.StartSpan(ctx, "packet.Build",
		trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	log := observe.Logger(ctx).With("page", page)
	buildStart := time.Now()

	// Render.
	renderStart := time.Now()
	image, err := document.RenderPNG(ctx, page-1, b.scale)
	b.metrics.RenderDuration.Record(ctx, time.Since(renderStart).Seconds())
	if err != nil {
		if errors.Is(err, doc.ErrPageOutOfRange) {
			// End of document, not a failure. No downstream calls.
			return nil, err
		}
		return nil, fmt.Errorf("packet: render page %d: %w", page, err)
	}

	// Generate.
	instructions := b.assets.Prompt() + b.assets.PageLead(page)
	generateStart := time.Now()
	scr, err := b.generator.Narrate(ctx, page, instructions, image)
	b.metrics.GenerateDuration.Record(ctx, time.Since(generateStart).Seconds())
	if err != nil {
		b.metrics.RecordProviderError(ctx, "generator", "generate")
		return nil, err
	}
	if scr.Degraded {
		log.Warn("generator response had no voice markers, using raw text")
	}

	// Sanitize once; synthesis and segmentation both consume this exact text.
	voice := narrate.Sanitize(scr.Voice, b.assets.Pronunciations())

	// Synthesize.
	synthStart := time.Now()
	narration, err := b.synthesizer.Speak(ctx, page, voice)
	b.metrics.SynthesizeDuration.Record(ctx, time.Since(synthStart).Seconds())
	if err != nil {
		b.metrics.RecordProviderError(ctx, "speech", "synthesize")
		return nil, err
	}

	// Segment and time.
	captions := caption.Split(voice)
	track, err := caption.TrackFromBoundaries(captions, narration.Boundaries)
	if err != nil {
		log.Debug("uniform caption timing", "reason", err)
		track = caption.UniformTrack(narration.Duration, len(captions), b.minInterval)
	}

	b.metrics.PacketBuildDuration.Record(ctx, time.Since(buildStart).Seconds())
	log.Info("page packet built",
		"captions", len(captions),
		"audio_bytes", len(narration.Audio),
		"audio_duration", narration.Duration,
		"exact_timing", track.Exact(),
		"took", time.Since(buildStart))

	return &Packet{
		Page:          page,
		Image:         image,
		DisplayText:   scr.Display,
		VoiceText:     voice,
		Audio:         narration.Audio,
		Captions:      captions,
		Timing:        track,
		AudioDuration: narration.Duration,
		Degraded:      scr.Degraded,
	}, nil
}
