package caption

import (
	"errors"
	"fmt"
	"time"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

// DefaultMinInterval is the floor applied to uniform caption intervals so
// captions never flip faster than a reader can follow.
const DefaultMinInterval = 250 * time.Millisecond

// Cue is one caption with an explicit display window.
type Cue struct {
	// Start and End bound the cue relative to the beginning of the audio.
	Start time.Duration
	End   time.Duration

	// Text is the caption unit shown during the window.
	Text string
}

// Track carries the timing for one page's caption sequence. Exactly one of
// the two representations is populated: Cues when word-boundary events were
// available, Interval as the uniform fallback.
type Track struct {
	Cues     []Cue
	Interval time.Duration
}

// Exact reports whether the track carries explicit per-caption windows.
func (t Track) Exact() bool { return len(t.Cues) > 0 }

// UniformTrack derives a single interval from the total audio duration spread
// evenly across the captions, clamped to minInterval. A non-positive
// minInterval selects DefaultMinInterval.
func UniformTrack(total time.Duration, captions int, minInterval time.Duration) Track {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if captions < 1 {
		captions = 1
	}
	interval := total / time.Duration(captions)
	if interval < minInterval {
		interval = minInterval
	}
	return Track{Interval: interval}
}

// TrackFromBoundaries aligns captions with synthesizer word-boundary events
// and produces explicit cues.
//
// Each caption claims boundary events until the spoken-rune count of the
// claimed words reaches the caption's own spoken-rune count. Cue windows are
// forced non-decreasing and non-overlapping; boundary events left over after
// the final caption extend its window. Callers should fall back to
// UniformTrack when this returns an error.
func TrackFromBoundaries(captions []string, bounds []speech.WordBoundary) (Track, error) {
	if len(captions) == 0 {
		return Track{}, errors.New("caption: no captions to align")
	}
	if len(bounds) == 0 {
		return Track{}, errors.New("caption: no boundary events")
	}

	cues := make([]Cue, 0, len(captions))
	bi := 0
	var prevEnd time.Duration

	for ci, text := range captions {
		target := spokenRunes(text)
		if target == 0 {
			cues = append(cues, Cue{Start: prevEnd, End: prevEnd, Text: text})
			continue
		}
		if bi >= len(bounds) {
			return Track{}, fmt.Errorf("caption: boundary events exhausted at caption %d of %d", ci+1, len(captions))
		}

		start := bounds[bi].Offset
		if start < prevEnd {
			start = prevEnd
		}
		end := start
		consumed := 0
		for bi < len(bounds) && consumed < target {
			b := bounds[bi]
			consumed += spokenRunes(b.Text)
			if e := b.Offset + b.Duration; e > end {
				end = e
			}
			bi++
		}

		cues = append(cues, Cue{Start: start, End: end, Text: text})
		prevEnd = end
	}

	// Drift between caption text and boundary words can leave trailing
	// events; they belong to the last caption.
	for ; bi < len(bounds); bi++ {
		if e := bounds[bi].Offset + bounds[bi].Duration; e > cues[len(cues)-1].End {
			cues[len(cues)-1].End = e
		}
	}

	return Track{Cues: cues}, nil
}
