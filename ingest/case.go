package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ameetan/go-lexlink/store"
)

// Neutral citation: "[2002] SGCA 50", including bracketed court
// variants like "SGHC(A)".
var citationPattern = regexp.MustCompile(`\[(\d{4})\]\s+([A-Z]+(?:\([A-Z]+\))?)\s+(\d+)`)

// Paragraph header patterns in declining confidence order. Judgment
// paragraphs are numbered "1␠␠Text", some reports use "[1] Text" or
// "1. Text". The winner is whichever numbering carries the longest
// monotone run, which shrugs off page numbers and dates.
var caseParaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(\d+)\s{2,}([A-Z])`),
	regexp.MustCompile(`(?m)^\s*\[(\d+)\]\s+`),
	regexp.MustCompile(`(?m)^\s*(\d+)\.\s+`),
}

var caseIDCleanRe = regexp.MustCompile(`[\[\]\s]+`)

func (g *Ingester) segmentCase(src SourceDocument) *Batch {
	text := src.RawText
	citation := extractCitation(src.Path, text)
	parties := extractParties(src.Path, text)
	court, year := courtAndYear(citation)
	caseID := caseIDFromCitation(citation)

	batch := &Batch{}
	seen := make(map[string]bool)
	batch.add(seen, store.Document{
		ID:       caseID,
		DocType:  store.DocCase,
		Level:    0,
		Title:    citation,
		Citation: citation,
		Court:    court,
		Year:     year,
		Parties:  parties,
		FullText: firstN(text, g.opts.MaxRootTextChars),
		Hash:     hashText(text),
	})

	matches := bestCaseHeaders(text)
	for i, m := range matches {
		paraNo := leadingInt(m.num)
		fullText := span(text, matches, i)
		body := strings.TrimSpace(text[m.contentStart:sectionEnd(text, matches, i)])

		batch.add(seen, store.Document{
			ID:       fmt.Sprintf("%s_para_%d", caseID, paraNo),
			DocType:  store.DocCase,
			ParentID: caseID,
			Level:    1,
			Title:    fmt.Sprintf("¶%d: %s", paraNo, firstN(body, 100)),
			Citation: citation,
			Court:    court,
			Year:     year,
			Parties:  parties,
			ParaNo:   paraNo,
			FullText: fullText,
			Hash:     hashText(fullText),
		})
	}

	if len(batch.Documents) > 0 {
		batch.Root = &batch.Documents[0]
	}
	return batch
}

// bestCaseHeaders picks the paragraph pattern whose numbering runs the
// longest strictly-increasing stretch, and keeps only that stretch;
// earlier patterns win ties.
func bestCaseHeaders(text string) []headerMatch {
	var best []headerMatch
	bestRun := 0
	for i, re := range caseParaPatterns {
		bodyGroup := 0
		if i == 0 {
			bodyGroup = 2 // body starts at the capital, not after the spaces
		}
		matches := findHeaders(re, text, bodyGroup)
		if start, run := longestMonotoneRun(matches); run > bestRun {
			best, bestRun = matches[start:start+run], run
		}
	}
	return best
}

// extractCitation looks for a neutral citation in the filename, then
// the opening lines; the bare filename is the last resort so every
// judgment still gets a stable identifier.
func extractCitation(path, text string) string {
	name := baseName(path)
	if m := citationPattern.FindString(name); m != "" {
		return m
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		if m := citationPattern.FindString(line); m != "" {
			return m
		}
	}
	return name
}

// extractParties strips the citation out of the filename; when nothing
// remains, the first line of the judgment is tried instead.
func extractParties(path, text string) string {
	name := baseName(path)
	parties := strings.TrimSpace(citationPattern.ReplaceAllString(name, ""))
	if parties != "" {
		return parties
	}

	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	parties = strings.TrimSpace(citationPattern.ReplaceAllString(firstLine, ""))
	if parties != "" {
		return parties
	}
	return name
}

// courtAndYear parses the court code and decision year out of a
// neutral citation. Both stay zero when the citation is a filename
// fallback.
func courtAndYear(citation string) (string, int) {
	m := citationPattern.FindStringSubmatch(citation)
	if m == nil {
		return "", 0
	}
	year, _ := strconv.Atoi(m[1])
	return m[2], year
}

// caseIDFromCitation slugs a citation: "[2002] SGCA 50" becomes
// "2002_sgca_50".
func caseIDFromCitation(citation string) string {
	id := strings.ToLower(citation)
	id = caseIDCleanRe.ReplaceAllString(id, "_")
	return strings.Trim(id, "_")
}
