// Package linkextract mines case paragraphs for statute-interpretation
// links. A rule-based pass finds explicit interpretation language with
// regex patterns, an optional chat-assisted pass catches phrasing the
// patterns miss, a quality gate scores every candidate, and the
// pipeline resolves statute references against the corpus before
// writing links to the store. Curated links arrive through the sheet
// loader instead.
package linkextract

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ameetan/go-lexlink/store"
)

// Paragraph is one case paragraph together with the metadata of the
// judgment it belongs to. Extractors work on these rather than store
// documents so they can be driven from tests and one-off scripts.
type Paragraph struct {
	ParagraphID string
	ParaNo      int
	Text        string
	CaseID      string
	CaseName    string
	Citation    string
	Court       string
	Year        int
}

// StatuteCitation is one statutory reference found in paragraph text.
type StatuteCitation struct {
	Name     string
	Section  string
	FullText string
}

// Result collects the links one extraction pass produced.
type Result struct {
	Links             []store.InterpretationLink
	CasesProcessed    int
	ParagraphsScanned int
	Method            store.ExtractionMethod
	Elapsed           time.Duration
}

type patternSet struct {
	itype    store.InterpretationType
	patterns []*regexp.Regexp
}

// interpretationPatterns maps marker phrases to interpretation types.
// Order matters: when two types match equally often the earlier one
// wins, so the generic CLARIFY markers sit first.
var interpretationPatterns = []patternSet{
	{store.InterpClarify, compilePatterns(
		`(?:held|found|decided|determined)\s+that\s+(?:section|s\.)\s*\d+[a-z]?`,
		`(?:interpreting|construing|construction\s+of)\s+(?:section|s\.)\s*\d+[a-z]?`,
		`(?:interpretation|meaning|scope)\s+of\s+(?:section|s\.)\s*\d+[a-z]?`,
		`(?:section|s\.)\s*\d+[a-z]?\s+(?:means|requires|provides|applies)`,
		`(?:section|s\.)\s*\d+[a-z]?\s+to\s+mean`,
		`clarif(?:y|ies|ied)`,
		`(?:explained|elaborated)\s+(?:in|that)`,
		`to\s+be\s+understood\s+as`,
		`what\s+(?:is|was)\s+meant\s+by`,
	)},
	{store.InterpNarrow, compilePatterns(
		`narrow(?:ly)?\s+(?:interpreted|construed|read)`,
		`(?:only|solely|merely)\s+applies\s+(?:to|where|when)`,
		`does\s+not\s+extend\s+to`,
		`limited\s+to`,
		`confined\s+to`,
		`restricted\s+to`,
	)},
	{store.InterpBroad, compilePatterns(
		`broad(?:ly)?\s+(?:interpreted|construed|read)`,
		`not\s+(?:limited|confined|restricted)\s+to`,
		`includes?\s+(?:not\s+only|also)`,
		`(?:wide|expansive|liberal)\s+(?:interpretation|reading|construction)`,
	)},
	{store.InterpPurposive, compilePatterns(
		`purposive\s+(?:interpretation|approach|construction)`,
		`legislative\s+(?:intent|purpose|object)`,
		`(?:object|purpose)\s+of\s+the\s+(?:provision|section|act)`,
		`mischief\s+(?:rule|which)`,
		`parliament\s+(?:intended|meant)`,
	)},
	{store.InterpLiteral, compilePatterns(
		`literal\s+(?:interpretation|reading|meaning)`,
		`plain\s+(?:meaning|text|words?)`,
		`natural\s+(?:meaning|interpretation)`,
		`ordinary\s+meaning`,
	)},
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// statuteCitationRe matches a statutory reference in either order:
// "Section 2(1) of the Misrepresentation Act" or
// "Misrepresentation Act (Cap 390) s 2(1)". Group 1 holds a leading
// section, group 2 the name, groups 3 to 5 cap and year variants,
// group 6 a trailing section.
var statuteCitationRe = regexp.MustCompile(
	`(?:[Ss]ections?\s+(\d+[A-Z]?(?:\([^)]*\))*)\s+of\s+the\s+)?` +
		`((?:[A-Z][A-Za-z'’]*\s+)+(?:Act|Rules|Code|Ordinance)|Rules of Court)` +
		`(?:\s+\(Cap\.?\s*(\d+[A-Z]?)\)|\s+\((\d{4})\)|\s+(\d{4}))?` +
		`(?:[\s,]+(?:[Ss]ections?|[Ss]ec\.|[Ss]\.?)\s*(\d+[A-Z]?(?:\([^)]*\))*))?`)

func extractStatuteCitations(text string) []StatuteCitation {
	var cites []StatuteCitation
	for _, m := range statuteCitationRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimPrefix(strings.TrimSpace(m[2]), "The ")
		if name == "" {
			continue
		}
		section := m[1]
		if section == "" {
			section = m[6]
		}
		cites = append(cites, StatuteCitation{
			Name:     name,
			Section:  strings.TrimSpace(section),
			FullText: strings.TrimSpace(m[0]),
		})
	}
	return cites
}

// classifyInterpretation picks the type whose markers match the text
// most often. A text with no marker at all defaults to CLARIFY at low
// confidence; otherwise confidence grows with the match count and is
// capped at 0.95.
func classifyInterpretation(text string) (store.InterpretationType, float64) {
	best := store.InterpClarify
	bestCount := 0
	for _, set := range interpretationPatterns {
		count := 0
		for _, re := range set.patterns {
			if re.MatchString(text) {
				count++
			}
		}
		if count > bestCount {
			best = set.itype
			bestCount = count
		}
	}
	if bestCount == 0 {
		return store.InterpClarify, 0.5
	}
	conf := 0.8 + float64(bestCount)*0.05
	if conf > 0.95 {
		conf = 0.95
	}
	return best, conf
}

func hasInterpretationPattern(text string) bool {
	for _, set := range interpretationPatterns {
		for _, re := range set.patterns {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

var (
	obiterRe  = regexp.MustCompile(`(?i)obiter\s+dict(?:um|a)|by\s+the\s+way|in\s+passing`)
	dissentRe = regexp.MustCompile(`(?i)dissenting|in\s+dissent|I\s+would\s+(?:respectfully\s+)?disagree`)
)

// determineAuthority grades a paragraph by the court that wrote it.
// Obiter and dissent markers in the text override the hierarchy: even
// an apex-court aside binds nobody.
func determineAuthority(court, text string) (store.Authority, float64) {
	if obiterRe.MatchString(text) {
		return store.AuthorityObiter, 1.5
	}
	if dissentRe.MatchString(text) {
		return store.AuthorityDissent, 1.2
	}
	switch strings.ToUpper(court) {
	case "SGCA", "CA":
		return store.AuthorityBinding, 2.8
	case "SGHC", "HC", "SGDC", "DC":
		return store.AuthorityPersuasive, 2.0
	default:
		return store.AuthorityPersuasive, 1.5
	}
}

var holdingSplitRe = regexp.MustCompile(`[.!?]+\s+`)

// extractHolding returns the first sentence naming the statute plus the
// sentence after it, truncated to 300 runes. When no sentence names the
// statute the opening two sentences stand in.
func extractHolding(text string, cite StatuteCitation) string {
	sentences := splitHoldingSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	name := strings.ToLower(cite.Name)
	section := strings.ToLower(cite.Section)
	for i, sent := range sentences {
		lower := strings.ToLower(sent)
		if (name != "" && strings.Contains(lower, name)) ||
			(section != "" && strings.Contains(lower, "section "+section)) ||
			(section != "" && strings.Contains(lower, "s. "+section)) {
			end := i + 2
			if end > len(sentences) {
				end = len(sentences)
			}
			return truncateHolding(strings.Join(sentences[i:end], " "))
		}
	}
	end := 2
	if end > len(sentences) {
		end = len(sentences)
	}
	return truncateHolding(strings.Join(sentences[:end], " "))
}

func splitHoldingSentences(text string) []string {
	var out []string
	for _, p := range holdingSplitRe.Split(text, -1) {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncateHolding(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 300 {
		return string(r[:297]) + "..."
	}
	return s
}

// statuteNameAliases maps shorthand names seen in judgments to the
// names the corpus ingests under.
var statuteNameAliases = map[string]string{
	"roc": "rules of court",
}

var statuteIDCleaner = strings.NewReplacer("(", "", ")", "", ".", "", ",", "", "'", "", "’", "")

// placeholderStatuteID names a statute the extractor has not resolved
// against the corpus yet. The pipeline swaps it for a real document ID;
// until then it keeps links for the same provision deduplicable.
func placeholderStatuteID(name, section string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := statuteNameAliases[n]; ok {
		n = alias
	}
	n = statuteIDCleaner.Replace(n)
	n = strings.Join(strings.Fields(n), "_")
	id := "statute_" + n
	if s := sectionIDPart(section); s != "" {
		id += "_s" + s
	}
	return id
}

func sectionIDPart(section string) string {
	s := strings.ToLower(strings.TrimSpace(section))
	return strings.NewReplacer("(", "", ")", "", " ", "").Replace(s)
}

// RuleBased extracts interpretation links with the marker patterns
// alone. Links come out unverified, with confidence between 0.8 and
// 0.95 depending on how many distinct markers fired.
type RuleBased struct{}

func NewRuleBased() *RuleBased { return &RuleBased{} }

// Extract scans every paragraph for a statutory citation paired with
// interpretation language. Paragraphs missing either produce nothing.
func (e *RuleBased) Extract(paras []Paragraph) *Result {
	start := time.Now()
	res := &Result{Method: store.ExtractRuleBased, ParagraphsScanned: len(paras)}
	cases := make(map[string]bool)

	for _, p := range paras {
		cases[p.CaseID] = true
		cites := extractStatuteCitations(p.Text)
		if len(cites) == 0 || !hasInterpretationPattern(p.Text) {
			continue
		}
		for _, cite := range cites {
			res.Links = append(res.Links, e.link(p, cite))
		}
	}

	res.CasesProcessed = len(cases)
	res.Elapsed = time.Since(start)
	slog.Debug("rule-based extraction done",
		"paragraphs", res.ParagraphsScanned,
		"links", len(res.Links),
		"elapsed", res.Elapsed)
	return res
}

func (e *RuleBased) link(p Paragraph, cite StatuteCitation) store.InterpretationLink {
	itype, confidence := classifyInterpretation(p.Text)
	authority, boost := determineAuthority(p.Court, p.Text)
	return store.InterpretationLink{
		StatuteID:            placeholderStatuteID(cite.Name, cite.Section),
		CaseID:               p.ParagraphID,
		StatuteName:          cite.Name,
		StatuteSection:       cite.Section,
		StatuteText:          cite.FullText,
		CaseName:             p.CaseName,
		CaseCitation:         p.Citation,
		CaseParaNo:           p.ParaNo,
		CaseText:             p.Text,
		Court:                p.Court,
		Year:                 p.Year,
		InterpretationType:   itype,
		Authority:            authority,
		Holding:              extractHolding(p.Text, cite),
		ApplicabilityScore:   0.5,
		BoostFactor:          boost,
		ExtractionMethod:     store.ExtractRuleBased,
		ExtractionConfidence: confidence,
	}
}
