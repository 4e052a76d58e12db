package pipeline

import "strings"

// Stopword lists for a crude language guess. The guess only seeds the
// translation prompt; a wrong guess degrades style, not correctness.
var languageStopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "is", "that", "with", "thee", "thou"},
	"de": {"der", "die", "das", "und", "ich", "nicht", "ein", "mit", "ist"},
	"fr": {"le", "la", "les", "et", "je", "ne", "pas", "une", "est", "dans"},
	"es": {"el", "la", "los", "y", "que", "no", "una", "es", "con", "por"},
	"it": {"il", "la", "che", "e", "non", "di", "una", "per", "con", "sono"},
}

// detectLanguage guesses the dominant language of text by stopword counts.
// Returns "unknown" when nothing matches.
func detectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "unknown"
	}

	seen := make(map[string]int, len(words))
	for _, w := range words {
		seen[strings.Trim(w, ".,!?;:'\"()")]++
	}

	best, bestScore := "unknown", 0
	for lang, stops := range languageStopwords {
		score := 0
		for _, s := range stops {
			score += seen[s]
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}
