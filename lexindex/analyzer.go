package lexindex

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeText prepares text for indexing: NFKC normalization so that
// ligatures, full-width forms, and compatibility characters from PDF
// extraction match their plain equivalents, then whitespace collapse.
// Case folding and stemming are left to the porter unicode61 tokenizer.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// sanitizeQuery turns free text into a safe FTS5 query: strip special
// syntax characters, then build a quoted full phrase OR'd with the
// individual significant terms for broader matching.
func sanitizeQuery(query string) string {
	replacer := strings.NewReplacer(
		"\"", "",
		"*", "",
		"(", "",
		")", "",
		"+", "",
		"-", "",
		"^", "",
		":", "",
		"?", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
		"!", "",
		".", "",
		",", "",
		";", "",
	)
	cleaned := replacer.Replace(strings.ToLower(norm.NFKC.String(query)))

	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return ""
	}

	var parts []string
	if len(words) > 1 {
		parts = append(parts, "\""+strings.Join(words, " ")+"\"")
	}
	for _, w := range words {
		if len(w) > 2 && !isStopWord(w) {
			parts = append(parts, w)
		}
	}

	if len(parts) == 0 {
		return strings.Join(words, " OR ")
	}
	return strings.Join(parts, " OR ")
}

// Legal boilerplate joins the usual function words: terms that appear in
// nearly every provision carry no signal for matching.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "whom": true,
	"where": true, "when": true, "how": true, "why": true, "not": true,
	"no": true, "nor": true, "if": true, "then": true, "than": true,
	"so": true, "as": true, "about": true, "into": true, "between": true,
	"herein": true, "thereof": true, "hereby": true, "whereas": true,
	"pursuant": true, "subsection": true, "aforesaid": true,
}

func isStopWord(w string) bool {
	return stopWords[strings.ToLower(w)]
}
