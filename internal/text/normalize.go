package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Typographic characters folded to their plain ASCII forms before
// synthesis.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Normalizer cleans raw input text so the sentence splitter and the speech
// engine see predictable punctuation.
type Normalizer struct {
	abbreviationReplacer *strings.Replacer
	typographyReplacer   *strings.Replacer
}

// NewNormalizer creates a Normalizer with its replacers compiled upfront.
func NewNormalizer() *Normalizer {
	// Trailing-period abbreviations would otherwise read as sentence
	// boundaries.
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Corp.", "Corporation",
		"Inc.", "Incorporated",
	}

	typography := []string{
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChar, ellipsis,
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	}

	return &Normalizer{
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		typographyReplacer:   strings.NewReplacer(typography...),
	}
}

// Normalize expands abbreviations, folds typographic punctuation, collapses
// whitespace runs and guarantees a sentence-ending terminator.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = n.abbreviationReplacer.Replace(text)
	text = n.typographyReplacer.Replace(text)
	text = collapseWhitespace(text)

	return ensureTerminator(text)
}

// collapseWhitespace folds tabs, newlines and space runs into single
// spaces.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ensureTerminator appends a period when the text does not already end on
// sentence punctuation.
func ensureTerminator(text string) string {
	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?':
		return text
	}

	if unicode.IsPunct(lastChar) {
		return text
	}

	return text + "."
}
