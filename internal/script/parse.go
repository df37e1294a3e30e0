// Package script turns raw generator output into a display script and a
// voice script, and wraps generator calls with page-aware error reporting.
package script

import "strings"

// Sentinel markers the instruction prompt asks the generator to wrap spoken
// narration in.
const (
	voiceStart = "[[VOICE_START]]"
	voiceEnd   = "[[VOICE_END]]"
)

// Script is the parsed form of one generator response.
type Script struct {
	// Display is the full annotated text shown on screen: the raw response
	// with every voice span (markers inclusive) removed, then trimmed.
	Display string

	// Voice is the narration-only text handed to the synthesizer: all voice
	// spans space-joined in order of appearance.
	Voice string

	// Degraded is set when the response carried no voice markers. The whole
	// raw text then serves as both scripts. This is a supported mode, not an
	// error: some models ignore the marker convention.
	Degraded bool
}

// Parse splits a raw generator response into display and voice scripts.
//
// An unterminated voice span (start marker with no matching end) is left in
// place: it stays in the display text and contributes nothing to the voice
// text.
func Parse(raw string) Script {
	var voices []string
	var display strings.Builder

	rest := raw
	for {
		i := strings.Index(rest, voiceStart)
		if i < 0 {
			break
		}
		j := strings.Index(rest[i+len(voiceStart):], voiceEnd)
		if j < 0 {
			break
		}
		span := rest[i+len(voiceStart) : i+len(voiceStart)+j]
		if s := strings.TrimSpace(span); s != "" {
			voices = append(voices, s)
		}
		display.WriteString(rest[:i])
		rest = rest[i+len(voiceStart)+j+len(voiceEnd):]
	}
	display.WriteString(rest)

	if len(voices) == 0 {
		return Script{
			Display:  strings.TrimSpace(raw),
			Voice:    raw,
			Degraded: true,
		}
	}
	return Script{
		Display: strings.TrimSpace(display.String()),
		Voice:   strings.Join(voices, " "),
	}
}
