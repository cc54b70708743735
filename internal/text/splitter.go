// Package text provides sentence splitting and batch grouping for long
// synthesis inputs.
//
// The splitter is a deliberate character-scan heuristic, not a grammar:
// batch sizing downstream depends on its specific (imperfect) boundaries,
// so it must not be swapped for a smarter sentence detector without
// revisiting those guarantees.
package text

import "strings"

const (
	// MinSentenceChars is the threshold below which a unit is merged
	// forward into the next one to avoid degenerate micro-batches.
	MinSentenceChars = 20

	// DefaultMaxBatchChars is the default per-batch character budget.
	DefaultMaxBatchChars = 2500
)

// SplitSentences splits text into sentence-like units. A boundary is
// hypothesized at a whitespace character immediately following '.', '!' or
// '?', unless the character three positions back is itself '.' or a space
// (a crude abbreviation guard). Units shorter than MinSentenceChars are
// greedily merged into the following unit.
func SplitSentences(text string) []string {
	var parts []string

	var current []rune

	for _, char := range text {
		current = append(current, char)

		if !isBoundaryWhitespace(char) || len(current) <= 1 {
			continue
		}

		prev := current[len(current)-2]
		if prev != '.' && prev != '!' && prev != '?' {
			continue
		}

		if len(current) > 3 {
			guard := current[len(current)-3]
			if guard != '.' && guard != ' ' {
				unit := strings.TrimSpace(string(current))
				if unit != "" {
					parts = append(parts, unit)
				}

				current = current[:0]
			}
		}
	}

	if remainder := strings.TrimSpace(string(current)); remainder != "" {
		parts = append(parts, remainder)
	}

	return mergeShortUnits(parts)
}

func isBoundaryWhitespace(char rune) bool {
	return char == ' ' || char == '\n' || char == '\t'
}

// mergeShortUnits combines units below MinSentenceChars with their
// successors so no unit but possibly the last stays degenerate.
func mergeShortUnits(parts []string) []string {
	var combined []string

	idx := 0
	for idx < len(parts) {
		current := parts[idx]

		for idx < len(parts)-1 && len([]rune(current)) < MinSentenceChars {
			idx++
			current += " " + parts[idx]
		}

		combined = append(combined, current)
		idx++
	}

	return combined
}

// GroupBatches regroups sentence units into ordered batches bounded by
// maxChars. A unit that alone exceeds the budget still becomes its own
// batch; units are never split. Empty batches are never emitted and
// trailing text is never dropped.
func GroupBatches(units []string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxBatchChars
	}

	var batches []string

	var current strings.Builder

	currentLen := 0

	for _, unit := range units {
		unitLen := len([]rune(unit))

		// The joining space counts against the budget too.
		if currentLen > 0 && currentLen+unitLen+1 > maxChars {
			batches = append(batches, current.String())
			current.Reset()

			currentLen = 0
		}

		if currentLen > 0 {
			current.WriteString(" ")

			currentLen++
		}

		current.WriteString(unit)

		currentLen += unitLen
	}

	if current.Len() > 0 {
		batches = append(batches, current.String())
	}

	return batches
}
