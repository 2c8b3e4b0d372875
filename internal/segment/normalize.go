package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Normalizer cleans segment text before it is handed to the speech
// synthesizer. Reusable replacers are compiled once upfront.
type Normalizer struct {
	punctuationReplacer *strings.Replacer
}

// NewNormalizer creates a normalizer with precompiled replacers.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		punctuationReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize collapses whitespace, replaces typographic punctuation with its
// plain ASCII form, and ensures the text ends with sentence punctuation.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}

	normalized := n.punctuationReplacer.Replace(text)
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	return ensureSentenceEnding(normalized)
}

// ensureSentenceEnding appends a period when the text does not already end
// with sentence punctuation; synthesizers produce flat prosody otherwise.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return text
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	if !unicode.IsPunct(lastChar) {
		return text + "."
	}

	switch lastChar {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
