// Package validation scores generated legal answers and checks every
// case-interprets-statute claim they make against the verified link store
// and the retrieved context.
package validation

import (
	"regexp"
	"strings"
)

// Section names used in scores, missing-section lists and feedback.
const (
	SectionStatute        = "statute"
	SectionInterpretation = "interpretation"
	SectionSynthesis      = "synthesis"
	SectionPractical      = "practical_effect"
)

// Section weights. Synthesis carries the largest share, and an answer
// whose synthesis section scores zero never passes regardless of the
// other sections.
const (
	weightStatute        = 0.25
	weightInterpretation = 0.25
	weightSynthesis      = 0.30
	weightPractical      = 0.20
)

// DefaultPassScore is the minimum overall score for a passing answer.
const DefaultPassScore = 0.70

var sectionOrder = []string{
	SectionStatute,
	SectionInterpretation,
	SectionSynthesis,
	SectionPractical,
}

var sectionFeedback = map[string]string{
	SectionStatute:        "Quote the statutory provision verbatim and name its section.",
	SectionInterpretation: "Cite at least one interpreting case with a pinpoint paragraph.",
	SectionSynthesis:      "Connect the statute to the case law explicitly, e.g. \"while the statute provides X, case law has narrowed it to Y\".",
	SectionPractical:      "State the practical consequence, opening with \"In practice\" or \"Therefore\".",
}

var (
	statuteHeaderRe   = regexp.MustCompile(`(?i)\*\*\s*statute\s*:?\s*\*\*`)
	interpHeaderRe    = regexp.MustCompile(`(?i)\*\*\s*(?:judicial\s+)?interpretation\s*:?\s*\*\*`)
	synthesisHeaderRe = regexp.MustCompile(`(?i)\*\*\s*synthesis\s*:?\s*\*\*`)
	practicalHeaderRe = regexp.MustCompile(`(?i)\*\*\s*practical\s+effect\s*:?\s*\*\*`)

	// A verbatim provision quote is at least twenty characters between
	// double quotes.
	quotedProvisionRe = regexp.MustCompile(`"[^"]{20,}"`)

	heldPhraseRe = regexp.MustCompile(`(?i)\bthe court(?: of appeal)?(?: has)? (?:held|ruled|decided|interpreted|clarified|construed)`)
)

// synthesisPhrases are the connectives that tie statutory text to case
// law. Three distinct phrases earn full content credit.
var synthesisPhrases = []string{
	"while the statute",
	"while the statutory",
	"although the statute",
	"case law has",
	"courts have interpreted",
	"the court interpreted",
	"the court's interpretation",
	"judicial interpretation",
	"binding precedent",
	"the plain text",
	"the plain words",
	"on its face",
	"read together",
	"when read with",
	"read in light of",
	"has narrowed",
	"has broadened",
	"has limited",
	"has extended",
	"has clarified",
	"as interpreted",
	"this interpretation",
}

var practicalConnectives = []string{
	"in practice",
	"this means",
	"therefore",
	"as a result",
	"the practical effect",
	"practically speaking",
}

var consequenceTokens = []string{
	"must ",
	"cannot ",
	"may not ",
	"need to ",
	"needs to ",
	"required to ",
	"can no longer ",
	"will not ",
	"will only ",
	"only if ",
	"only where ",
	"rarely ",
	"should ",
}

// SynthesisResult reports how completely an answer works through the
// statute, its judicial interpretation, their synthesis and the
// practical effect.
type SynthesisResult struct {
	Overall          float64             `json:"overall"`
	SectionScores    map[string]float64  `json:"section_scores"`
	MissingSections  []string            `json:"missing_sections,omitempty"`
	Passed           bool                `json:"passed"`
	Feedback         []string            `json:"feedback,omitempty"`
	DetectedPatterns map[string][]string `json:"detected_patterns,omitempty"`
}

// Scorer grades answers section by section.
type Scorer struct {
	passScore float64
}

// NewScorer returns a scorer with the given passing threshold.
// A non-positive threshold selects DefaultPassScore.
func NewScorer(passScore float64) *Scorer {
	if passScore <= 0 {
		passScore = DefaultPassScore
	}
	return &Scorer{passScore: passScore}
}

// PassScore returns the configured passing threshold.
func (s *Scorer) PassScore() float64 { return s.passScore }

// Score grades one answer. Each section is scored from its markdown
// header and content signals; the overall score is the weighted sum.
// An answer with no synthesis content fails even when the weighted sum
// reaches the threshold.
func (s *Scorer) Score(answer string) *SynthesisResult {
	lower := strings.ToLower(answer)

	scores := make(map[string]float64, 4)
	patterns := make(map[string][]string, 4)

	record := func(section string, sc float64, fired []string) {
		scores[section] = sc
		if len(fired) > 0 {
			patterns[section] = fired
		}
	}
	sc, fired := scoreStatuteSection(answer)
	record(SectionStatute, sc, fired)
	sc, fired = scoreInterpretationSection(answer)
	record(SectionInterpretation, sc, fired)
	sc, fired = scoreSynthesisSection(answer, lower)
	record(SectionSynthesis, sc, fired)
	sc, fired = scorePracticalSection(answer, lower)
	record(SectionPractical, sc, fired)

	res := &SynthesisResult{
		Overall: weightStatute*scores[SectionStatute] +
			weightInterpretation*scores[SectionInterpretation] +
			weightSynthesis*scores[SectionSynthesis] +
			weightPractical*scores[SectionPractical],
		SectionScores:    scores,
		DetectedPatterns: patterns,
	}
	for _, section := range sectionOrder {
		if scores[section] == 0 {
			res.MissingSections = append(res.MissingSections, section)
		}
		if scores[section] < 0.7 {
			res.Feedback = append(res.Feedback, sectionFeedback[section])
		}
	}
	res.Passed = res.Overall >= s.passScore && scores[SectionSynthesis] > 0
	return res
}

func scoreStatuteSection(answer string) (float64, []string) {
	var sc float64
	var fired []string
	switch {
	case statuteHeaderRe.MatchString(answer):
		sc += 0.4
		fired = append(fired, "header")
	case statuteNameRe.MatchString(answer):
		sc += 0.4
		fired = append(fired, "statute_name")
	}
	if quotedProvisionRe.MatchString(answer) {
		sc += 0.3
		fired = append(fired, "quoted_provision")
	}
	if sectionTokenRe.MatchString(answer) {
		sc += 0.3
		fired = append(fired, "section_reference")
	}
	return sc, fired
}

func scoreInterpretationSection(answer string) (float64, []string) {
	var sc float64
	var fired []string
	switch {
	case interpHeaderRe.MatchString(answer):
		sc += 0.4
		fired = append(fired, "header")
	case heldPhraseRe.MatchString(answer):
		sc += 0.4
		fired = append(fired, "holding_phrase")
	}
	if citationRe.MatchString(answer) {
		sc += 0.3
		fired = append(fired, "case_citation")
	}
	if pinpointRe.MatchString(answer) {
		sc += 0.3
		fired = append(fired, "pinpoint")
	}
	return sc, fired
}

func scoreSynthesisSection(answer, lower string) (float64, []string) {
	var sc float64
	var fired []string
	if synthesisHeaderRe.MatchString(answer) {
		sc += 0.4
		fired = append(fired, "header")
	}
	n := 0
	for _, phrase := range synthesisPhrases {
		if strings.Contains(lower, phrase) {
			n++
			fired = append(fired, phrase)
		}
	}
	if n > 3 {
		n = 3
	}
	sc += float64(n) / 3.0 * 0.6
	return sc, fired
}

func scorePracticalSection(answer, lower string) (float64, []string) {
	var sc float64
	var fired []string
	switch {
	case practicalHeaderRe.MatchString(answer):
		sc += 0.4
		fired = append(fired, "header")
	case startsWithConnective(answer):
		sc += 0.4
		fired = append(fired, "leading_connective")
	}
	for _, c := range practicalConnectives {
		if strings.Contains(lower, c) {
			sc += 0.3
			fired = append(fired, "connective")
			break
		}
	}
	for _, t := range consequenceTokens {
		if strings.Contains(lower, t) {
			sc += 0.3
			fired = append(fired, "consequence")
			break
		}
	}
	return sc, fired
}

// startsWithConnective reports whether any sentence opens with a
// summarizing connective such as "In practice" or "Therefore".
func startsWithConnective(answer string) bool {
	for _, sentence := range splitSentences(answer) {
		ls := strings.ToLower(sentence)
		for _, c := range practicalConnectives {
			if strings.HasPrefix(ls, c) {
				return true
			}
		}
	}
	return false
}
