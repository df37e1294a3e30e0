// Package narrate prepares voice text for synthesis and adapts a speech
// provider into the packet pipeline: it sanitizes the script, collects the
// audio stream and word-boundary events, and computes the authoritative audio
// duration from the MP3 frames.
package narrate

import (
	"regexp"
	"strings"
)

// pageSep is the page-separator token generators sometimes echo back from
// multi-page context material.
const pageSep = "---PAGE_SEP---"

// symbolDenylist removes markup characters that synthesizers read aloud or
// stumble over.
var symbolDenylist = regexp.MustCompile(`[$<>#@*_=]`)

// Replacement is one pronunciation fix applied before synthesis, e.g.
// rewriting a heteronym or an abbreviation the way it should be spoken.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Sanitize cleans a voice script for synthesis. The steps run in a fixed
// order: page-separator tokens become spaces, pronunciation replacements
// apply literally in table order, then leftover voice markers and denylisted
// symbols are stripped.
func Sanitize(text string, table []Replacement) string {
	s := strings.ReplaceAll(text, pageSep, " ")
	for _, r := range table {
		if r.From == "" {
			continue
		}
		s = strings.ReplaceAll(s, r.From, r.To)
	}
	s = strings.ReplaceAll(s, "[[VOICE_START]]", "")
	s = strings.ReplaceAll(s, "[[VOICE_END]]", "")
	return symbolDenylist.ReplaceAllString(s, "")
}
