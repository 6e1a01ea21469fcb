package cards

import "strings"

// FormatCardName turns a card key or object name into a display name:
// "major-arcana_the-fool.png" -> "The Fool". Used when no translation row
// exists for the drawn card.
func FormatCardName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[:idx]
	}

	// Drop the category prefix, keep the card part.
	if idx := strings.Index(name, "_"); idx >= 0 {
		name = name[idx+1:]
	}

	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.TrimPrefix(strings.TrimSpace(name), "the ")

	words := strings.Fields(name)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}

	return "The " + strings.Join(words, " ")
}
