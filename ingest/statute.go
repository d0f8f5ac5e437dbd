package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ameetan/go-lexlink/store"
)

// Section header patterns in declining confidence order: the bare
// "2." form most acts use, the OCR-spaced "2 ." variant, and the
// labelled "Section 2" form. The winner is whichever numbers most
// nearly count up by one.
var statuteHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\.`),
	regexp.MustCompile(`(?m)^\s*(\d+[A-Z]?)\s+\.`),
	regexp.MustCompile(`(?m)^\s*Section\s+(\d+[A-Z]?)\b`),
}

// Subsection markers: "(1)", "(a)", including the Singapore lead form
// "2.—(1)" where the section number repeats before the first marker.
var subsectionPattern = regexp.MustCompile(`(?m)^\s*(?:\d+[A-Z]?\.—)?\(([a-z0-9]+)\)\s`)

// Acts open with a dated enactment marker like "[1 February 1968]";
// everything before it is front matter and table of contents.
var enactmentDatePattern = regexp.MustCompile(`\[\d{1,2}\s+\w+\s+\d{4}\]`)

var revisedEditionPattern = regexp.MustCompile(`\d{4}\s+REVISED EDITION`)

var titleCaser = cases.Title(language.English)

func (g *Ingester) segmentStatute(src SourceDocument) *Batch {
	text := src.RawText
	actName := extractActName(src.Path, text)
	actID := slugID(actName)

	batch := &Batch{}
	seen := make(map[string]bool)
	batch.add(seen, store.Document{
		ID:       actID,
		DocType:  store.DocStatute,
		Level:    0,
		Title:    actName,
		ActName:  actName,
		FullText: firstN(text, g.opts.MaxRootTextChars),
		Hash:     hashText(text),
	})

	body := skipStatuteTOC(text)
	matches := bestStatuteHeaders(body)

	for i, m := range matches {
		sectionNum := m.num
		sectionID := actID + "_s" + strings.ToLower(sectionNum)
		sectionText := span(body, matches, i)
		title := firstLine(strings.TrimSpace(body[m.contentStart:sectionEnd(body, matches, i)]))

		ok := batch.add(seen, store.Document{
			ID:            sectionID,
			DocType:       store.DocStatute,
			ParentID:      actID,
			Level:         1,
			Title:         title,
			SectionNumber: sectionNum,
			ActName:       actName,
			FullText:      sectionText,
			Hash:          hashText(sectionText),
		})
		if !ok {
			continue // do not orphan subsections of a skipped section
		}

		subMatches := findHeaders(subsectionPattern, sectionText, 0)
		for j, sm := range subMatches {
			marker := sm.num
			subText := span(sectionText, subMatches, j)
			subBody := sectionText[sm.contentStart:sectionEnd(sectionText, subMatches, j)]
			batch.add(seen, store.Document{
				ID:            sectionID + "_" + marker,
				DocType:       store.DocStatute,
				ParentID:      sectionID,
				Level:         2,
				Title:         firstN(strings.TrimSpace(subBody), 100),
				SectionNumber: sectionNum,
				Subsection:    marker,
				ActName:       actName,
				FullText:      subText,
				Hash:          hashText(subText),
			})
		}
	}

	if len(batch.Documents) > 0 {
		batch.Root = &batch.Documents[0]
	}
	return batch
}

// bestStatuteHeaders tries each header pattern and keeps the one whose
// numbering is most nearly sequential, preferring earlier (higher
// confidence) patterns on ties.
func bestStatuteHeaders(body string) []headerMatch {
	var best []headerMatch
	bestFrac := -1.0
	for _, re := range statuteHeaderPatterns {
		matches := findHeaders(re, body, 0)
		if len(matches) == 0 {
			continue
		}
		frac := sequentialFraction(matches)
		if frac > bestFrac || (frac == bestFrac && len(matches) > len(best)) {
			best, bestFrac = matches, frac
		}
	}
	return best
}

func sectionEnd(body string, matches []headerMatch, i int) int {
	if i+1 < len(matches) {
		return matches[i+1].start
	}
	return len(body)
}

// extractActName scans the opening lines for a short line naming the
// act, stripping any revised-edition banner; the filename, title-cased,
// is the fallback.
func extractActName(path, text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	for _, line := range lines {
		if len(line) < 100 && strings.Contains(strings.ToUpper(line), "ACT") {
			name := strings.TrimSpace(revisedEditionPattern.ReplaceAllString(strings.TrimSpace(line), ""))
			if name != "" {
				return name
			}
		}
	}
	return titleCaser.String(strings.ReplaceAll(baseName(path), "_", " "))
}

// skipStatuteTOC drops everything before the dated enactment marker.
// Acts without one are walked from the top.
func skipStatuteTOC(text string) string {
	if loc := enactmentDatePattern.FindStringIndex(text); loc != nil {
		return text[loc[0]:]
	}
	return text
}
