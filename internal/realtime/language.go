package realtime

import (
	"strings"
	"unicode"
)

const DefaultLanguage = "en"

var languageKeywords = map[string][]string{
	"en": {"the", "and", "is", "are", "what", "where", "restaurant", "food", "want", "near", "please", "thanks", "with", "for", "me", "today", "tonight"},
	"es": {"el", "la", "los", "las", "y", "es", "que", "donde", "quiero", "comida", "restaurante", "cerca", "gracias", "por", "favor", "hoy", "con", "para"},
	"fr": {"le", "la", "les", "et", "est", "je", "veux", "où", "manger", "restaurant", "près", "merci", "avec", "pour", "ce", "soir", "bonjour"},
	"de": {"der", "die", "das", "und", "ist", "ich", "möchte", "wo", "essen", "restaurant", "in", "nähe", "danke", "bitte", "mit", "heute"},
	"it": {"il", "lo", "gli", "e", "è", "voglio", "dove", "mangiare", "ristorante", "vicino", "grazie", "per", "favore", "con", "stasera", "oggi"},
	"pt": {"o", "os", "as", "e", "é", "eu", "quero", "onde", "comida", "restaurante", "perto", "obrigado", "obrigada", "por", "favor", "com", "hoje"},
}

var languageOrder = []string{"en", "es", "fr", "de", "it", "pt"}

var keywordSets = func() map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{}, len(languageKeywords))
	for lang, words := range languageKeywords {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		sets[lang] = set
	}
	return sets
}()

// DetectLanguage tags text with the language whose keyword list it overlaps
// most. Ties go to the earlier language in languageOrder. ok is false when
// no keyword matched, in which case DefaultLanguage is returned.
func DetectLanguage(text string) (lang string, ok bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return DefaultLanguage, false
	}

	best, bestScore := DefaultLanguage, 0
	for _, l := range languageOrder {
		set := keywordSets[l]
		score := 0
		for _, w := range words {
			if _, hit := set[w]; hit {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = l, score
		}
	}
	return best, bestScore > 0
}
