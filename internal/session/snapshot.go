package session

import (
	"errors"

	"github.com/pagecoach/lectern/internal/caption"
	"github.com/pagecoach/lectern/internal/narrate"
	"github.com/pagecoach/lectern/internal/script"
)

// Snapshot is a read-only view of the controller's state, safe to hand to
// the HTTP layer. Bulk payloads (image, audio) are served separately via
// PacketImage and PacketAudio.
type Snapshot struct {
	Mode     Mode   `json:"mode"`
	Document string `json:"document,omitempty"`

	Page         int `json:"page,omitempty"`
	TotalPages   int `json:"total_pages,omitempty"`
	SegmentStart int `json:"segment_start,omitempty"`
	SegmentEnd   int `json:"segment_end,omitempty"`

	DisplayText    string   `json:"display_text,omitempty"`
	Captions       []string `json:"captions,omitempty"`
	CaptionIndex   int      `json:"caption_index"`
	CurrentCaption string   `json:"current_caption,omitempty"`

	// IntervalMS is the uniform caption interval; zero when cue timing is
	// explicit.
	IntervalMS int64 `json:"interval_ms,omitempty"`

	// Cues carries explicit caption windows when the synthesizer reported
	// word boundaries.
	Cues []CueView `json:"cues,omitempty"`

	AudioDurationMS int64 `json:"audio_duration_ms,omitempty"`
	Degraded        bool  `json:"degraded,omitempty"`

	EndOfDocument bool   `json:"end_of_document,omitempty"`
	Warning       string `json:"warning,omitempty"`

	// Error describes the failure while in the failed mode.
	Error       string `json:"error,omitempty"`
	FailedPage  int    `json:"failed_page,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
}

// CueView is the wire form of one timed caption.
type CueView struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Snapshot returns the current state. The caption index is clamped to the
// last caption so late ticks never read past the sequence.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Mode:          c.mode,
		Document:      c.docRef,
		TotalPages:    c.totalPages,
		SegmentStart:  c.segStart,
		SegmentEnd:    c.segEnd,
		EndOfDocument: c.endOfDoc,
		Warning:       c.warning,
	}

	if c.pkt != nil {
		s.Page = c.pkt.Page
		s.DisplayText = c.pkt.DisplayText
		s.Captions = append([]string(nil), c.pkt.Captions...)
		idx := c.cursor
		if idx > len(c.pkt.Captions)-1 {
			idx = len(c.pkt.Captions) - 1
		}
		s.CaptionIndex = idx
		if idx >= 0 && idx < len(c.pkt.Captions) {
			s.CurrentCaption = c.pkt.Captions[idx]
		}
		s.AudioDurationMS = c.pkt.AudioDuration.Milliseconds()
		s.Degraded = c.pkt.Degraded
		s.IntervalMS, s.Cues = trackView(c.pkt.Timing)
	}

	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
		s.FailedPage = c.failedPage
		s.FailureKind = failureKind(c.lastErr)
	}
	return s
}

// PacketImage returns a copy of the current packet's PNG image, or nil when
// no packet is installed.
func (c *Controller) PacketImage() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pkt == nil {
		return nil
	}
	return append([]byte(nil), c.pkt.Image...)
}

// PacketAudio returns a copy of the current packet's MP3 audio, or nil when
// no packet is installed.
func (c *Controller) PacketAudio() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pkt == nil {
		return nil
	}
	return append([]byte(nil), c.pkt.Audio...)
}

// CurrentMode returns the mode on its own, for health checks and logging.
func (c *Controller) CurrentMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func trackView(t caption.Track) (int64, []CueView) {
	if !t.Exact() {
		return t.Interval.Milliseconds(), nil
	}
	cues := make([]CueView, len(t.Cues))
	for i, cue := range t.Cues {
		cues[i] = CueView{
			StartMS: cue.Start.Milliseconds(),
			EndMS:   cue.End.Milliseconds(),
			Text:    cue.Text,
		}
	}
	return 0, cues
}

func failureKind(err error) string {
	var genErr *script.GenerationError
	if errors.As(err, &genErr) {
		return "generation"
	}
	var synErr *narrate.SynthesisError
	if errors.As(err, &synErr) {
		return "synthesis"
	}
	return "internal"
}
