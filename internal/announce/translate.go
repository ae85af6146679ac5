package announce

import "strings"

// hindiPhrases maps lowercase gesture labels to Hindi phrases.
var hindiPhrases = map[string]string{
	"hello":     "नमस्ते",
	"thank you": "धन्यवाद",
	"please":    "कृपया",
	"namaste":   "नमस्ते",
	"sorry":     "माफ़ कीजिए",
	"good":      "अच्छा",
	"bad":       "बुरा",
	"eat":       "खाना",
	"drink":     "पीना",
}

// Translate returns the phrase for label in lang.
// Lookup is case-insensitive; labels without an entry are returned unchanged.
func Translate(label string, lang Language) string {
	if lang != Hindi {
		return label
	}
	if phrase, ok := hindiPhrases[strings.ToLower(label)]; ok {
		return phrase
	}
	return label
}

// Phrase builds the spoken text for a label.
func Phrase(label string, lang Language) string {
	return "This is " + Translate(label, lang)
}
