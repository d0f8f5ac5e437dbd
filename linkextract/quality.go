package linkextract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ameetan/go-lexlink/store"
)

// Thresholds tune the quality gate. Zero fields fall back to the
// defaults, so callers only set what they want to change.
type Thresholds struct {
	MinScore         float64
	MinConfidence    float64
	MinTextLength    int
	MinHoldingLength int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinScore:         0.8,
		MinConfidence:    0.6,
		MinTextLength:    50,
		MinHoldingLength: 20,
	}
}

// Check is one named validation outcome with a human-readable detail.
type Check struct {
	Name    string  `json:"name"`
	Weight  float64 `json:"weight"`
	Passed  bool    `json:"passed"`
	Details string  `json:"details"`
}

// QualityScore grades one candidate link. Score is the weighted share
// of checks that passed.
type QualityScore struct {
	StatuteID string  `json:"statute_id"`
	CaseID    string  `json:"case_id"`
	Score     float64 `json:"score"`
	Passed    bool    `json:"passed"`
	Checks    []Check `json:"checks"`
}

// interpretationKeywords is the vocabulary a genuine interpretation
// paragraph is expected to use at least once.
var interpretationKeywords = []string{
	"held", "construed", "interpreted", "means", "applies", "requires",
	"narrow", "broad", "purposive", "clarify", "scope", "extent",
	"meaning", "purpose",
}

var holdingMarkers = []string{"court", "held", "section", "act", "applies", "means"}

// redFlagRes match paragraph openings that signal a cross-reference or
// bare citation list rather than substantive discussion.
var redFlagRes = []*regexp.Regexp{
	regexp.MustCompile(`^[\[\d\]]+$`),
	regexp.MustCompile(`(?i)^see\s+also`),
	regexp.MustCompile(`(?i)^cf\.`),
}

// QualityValidator scores extracted links against checks a curator
// would apply by hand. It never mutates the links it grades.
type QualityValidator struct {
	thresholds Thresholds
}

func NewQualityValidator(t Thresholds) *QualityValidator {
	d := DefaultThresholds()
	if t.MinScore <= 0 {
		t.MinScore = d.MinScore
	}
	if t.MinConfidence <= 0 {
		t.MinConfidence = d.MinConfidence
	}
	if t.MinTextLength <= 0 {
		t.MinTextLength = d.MinTextLength
	}
	if t.MinHoldingLength <= 0 {
		t.MinHoldingLength = d.MinHoldingLength
	}
	return &QualityValidator{thresholds: t}
}

// Validate runs every check against one link. Weights sum to 1.0 so the
// score reads as a fraction of checks passed.
func (v *QualityValidator) Validate(l store.InterpretationLink) QualityScore {
	checks := []Check{
		v.checkStatuteMentioned(l),
		v.checkTextLength(l),
		v.checkKeywords(l),
		v.checkAuthority(l),
		v.checkConfidence(l),
		v.checkHolding(l),
		v.checkRedFlags(l),
	}

	score := 0.0
	for _, c := range checks {
		if c.Passed {
			score += c.Weight
		}
	}

	return QualityScore{
		StatuteID: l.StatuteID,
		CaseID:    l.CaseID,
		Score:     score,
		Passed:    score >= v.thresholds.MinScore,
		Checks:    checks,
	}
}

// ValidateBatch grades every link, preserving order.
func (v *QualityValidator) ValidateBatch(links []store.InterpretationLink) []QualityScore {
	out := make([]QualityScore, len(links))
	for i, l := range links {
		out[i] = v.Validate(l)
	}
	return out
}

// FilterPassing returns only the links whose score clears the gate.
func (v *QualityValidator) FilterPassing(links []store.InterpretationLink) []store.InterpretationLink {
	var out []store.InterpretationLink
	for _, l := range links {
		if v.Validate(l).Passed {
			out = append(out, l)
		}
	}
	return out
}

// checkStatuteMentioned wants the statute named, or its section cited,
// inside the paragraph the link points at. A link whose own evidence
// never mentions the statute is almost always an extraction artifact.
func (v *QualityValidator) checkStatuteMentioned(l store.InterpretationLink) Check {
	c := Check{Name: "statute_mentioned", Weight: 0.20}
	text := strings.ToLower(l.CaseText)
	name := strings.ToLower(strings.TrimSpace(l.StatuteName))
	section := strings.ToLower(strings.TrimSpace(l.StatuteSection))

	switch {
	case name != "" && strings.Contains(text, name):
		c.Passed = true
		c.Details = fmt.Sprintf("%q named in paragraph", l.StatuteName)
	case section != "" && (strings.Contains(text, "section "+section) ||
		strings.Contains(text, "s. "+section) ||
		strings.Contains(text, "s "+section)):
		c.Passed = true
		c.Details = fmt.Sprintf("section %s cited in paragraph", l.StatuteSection)
	default:
		c.Details = "statute never mentioned in paragraph"
	}
	return c
}

func (v *QualityValidator) checkTextLength(l store.InterpretationLink) Check {
	c := Check{Name: "text_length", Weight: 0.15}
	n := len(strings.TrimSpace(l.CaseText))
	c.Passed = n >= v.thresholds.MinTextLength
	c.Details = fmt.Sprintf("%d chars, minimum %d", n, v.thresholds.MinTextLength)
	return c
}

func (v *QualityValidator) checkKeywords(l store.InterpretationLink) Check {
	c := Check{Name: "interpretation_keywords", Weight: 0.20}
	text := strings.ToLower(l.CaseText)
	var found []string
	for _, kw := range interpretationKeywords {
		if strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	if len(found) > 0 {
		c.Passed = true
		c.Details = "found: " + strings.Join(found, ", ")
	} else {
		c.Details = "no interpretation vocabulary in paragraph"
	}
	return c
}

// checkAuthority rejects apex-court links graded below their station.
// A Court of Appeal paragraph must carry BINDING authority unless an
// obiter or dissent marker demoted it.
func (v *QualityValidator) checkAuthority(l store.InterpretationLink) Check {
	c := Check{Name: "authority_consistent", Weight: 0.10}
	switch strings.ToUpper(l.Court) {
	case "SGCA", "CA":
		switch l.Authority {
		case store.AuthorityBinding, store.AuthorityObiter, store.AuthorityDissent:
			c.Passed = true
			c.Details = fmt.Sprintf("%s from %s", l.Authority, l.Court)
		default:
			c.Details = fmt.Sprintf("%s inconsistent with court %s", l.Authority, l.Court)
		}
	default:
		c.Passed = true
		c.Details = fmt.Sprintf("%s from %s", l.Authority, l.Court)
	}
	return c
}

func (v *QualityValidator) checkConfidence(l store.InterpretationLink) Check {
	c := Check{Name: "extraction_confidence", Weight: 0.15}
	c.Passed = l.ExtractionConfidence >= v.thresholds.MinConfidence
	c.Details = fmt.Sprintf("%.2f, minimum %.2f", l.ExtractionConfidence, v.thresholds.MinConfidence)
	return c
}

func (v *QualityValidator) checkHolding(l store.InterpretationLink) Check {
	c := Check{Name: "holding_substantive", Weight: 0.15}
	holding := strings.TrimSpace(l.Holding)
	if len(holding) < v.thresholds.MinHoldingLength || holding == "..." {
		c.Details = "holding missing or too short"
		return c
	}
	lower := strings.ToLower(holding)
	for _, m := range holdingMarkers {
		if strings.Contains(lower, m) {
			c.Passed = true
			c.Details = "holding names the ruling"
			return c
		}
	}
	c.Details = "holding reads as boilerplate"
	return c
}

func (v *QualityValidator) checkRedFlags(l store.InterpretationLink) Check {
	c := Check{Name: "no_red_flags", Weight: 0.05}
	text := strings.TrimSpace(l.CaseText)
	for _, re := range redFlagRes {
		if re.MatchString(text) {
			c.Details = "paragraph opens like a citation list"
			return c
		}
	}
	c.Passed = true
	c.Details = "none"
	return c
}
