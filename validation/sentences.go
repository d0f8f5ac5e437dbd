package validation

import "strings"

// legalAbbrevs lists tokens whose trailing period does not end a sentence.
// Lowercase, without the period.
var legalAbbrevs = map[string]bool{
	"o":     true,
	"r":     true,
	"s":     true,
	"ss":    true,
	"v":     true,
	"no":    true,
	"nos":   true,
	"cap":   true,
	"para":  true,
	"paras": true,
	"art":   true,
	"pte":   true,
	"ltd":   true,
	"co":    true,
	"cf":    true,
	"eg":    true,
	"ie":    true,
}

// splitSentences breaks text at '.', '?' or '!' followed by whitespace.
// A period after a known legal abbreviation ("O. 9", "r. 16", "s. 2",
// single-letter initials) stays inside its sentence. Internal whitespace
// is preserved, so every returned sentence is a substring of text.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !isSpaceRune(runes[i+1]) {
			continue
		}
		if r == '.' && abbreviationBefore(runes, i) {
			continue
		}
		flush()
	}
	flush()
	return sentences
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// abbreviationBefore reports whether the letters immediately before the
// period at runes[i] form a known abbreviation or a single initial.
func abbreviationBefore(runes []rune, i int) bool {
	end := i
	start := end
	for start > 0 && isLetterRune(runes[start-1]) {
		start--
	}
	if start == end {
		return false
	}
	token := strings.ToLower(string(runes[start:end]))
	if legalAbbrevs[token] {
		return true
	}
	// A single capital letter is an initial, as in "Tan A. B. Chuan".
	return end-start == 1 && runes[start] >= 'A' && runes[start] <= 'Z'
}

func isLetterRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
