// Package caption splits narration text into display-sized caption units and
// derives per-caption timing, either uniform or from synthesizer word-boundary
// events.
package caption

import (
	"strings"
	"unicode"
)

// terminal marks that end a caption unit. The split happens immediately after
// the mark, so the punctuation stays attached to its sentence.
var terminal = map[rune]bool{
	'。': true,
	'！': true,
	'？': true,
	'；': true,
	'…': true,
	'.': true,
	'!': true,
	'?': true,
	';': true,
}

// Split breaks text into an ordered sequence of caption units.
//
// Whitespace runs are collapsed to single spaces first. The text is then split
// after every sentence-terminal mark, discarding empty fragments. Text with no
// terminal marks comes back as a single unit, so the result always has at
// least one element. Empty input yields a single empty unit.
func Split(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")

	var units []string
	var b strings.Builder
	for _, r := range normalized {
		b.WriteRune(r)
		if terminal[r] {
			if u := strings.TrimSpace(b.String()); u != "" {
				units = append(units, u)
			}
			b.Reset()
		}
	}
	if u := strings.TrimSpace(b.String()); u != "" {
		units = append(units, u)
	}

	if len(units) == 0 {
		return []string{normalized}
	}
	return units
}

// spokenRunes counts the runes in s that a synthesizer would actually voice.
// Punctuation, symbols and whitespace are skipped so caption text and
// word-boundary text can be compared even though boundary events carry bare
// words.
func spokenRunes(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
