package chunker

import (
	"strings"
	"unicode"
)

// isTerminator reports whether r can end a sentence-like unit. Korean
// regulatory text closes sentences with the same ASCII punctuation ("...한다.")
// so no Hangul-specific terminators are needed; newlines additionally close
// headings and table rows that carry no punctuation.
func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

// sentenceUnits splits text into sentence-like units. A terminator only
// closes a unit when followed by whitespace or end of input, so clause
// numbers like "제16.4.1조" stay intact. Units keep their terminating
// punctuation; surrounding whitespace is trimmed and empty units dropped.
func sentenceUnits(text string) []string {
	runes := []rune(text)
	var units []string
	var cur strings.Builder

	flush := func() {
		if u := strings.TrimSpace(cur.String()); u != "" {
			units = append(units, u)
		}
		cur.Reset()
	}

	for i, r := range runes {
		cur.WriteRune(r)
		if !isTerminator(r) {
			continue
		}
		if r == '\n' || i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()

	return units
}
