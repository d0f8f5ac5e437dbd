package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ameetan/go-lexlink/store"
)

// ClaimStatus classifies one extracted claim after checking.
type ClaimStatus string

const (
	// ClaimVerified means the claim matches a verified interpretation link.
	ClaimVerified ClaimStatus = "verified"
	// ClaimUnverified means the claim is grounded in the retrieved context
	// but has no verified link.
	ClaimUnverified ClaimStatus = "unverified"
	// ClaimHallucinated means the claim is grounded in neither the link
	// store nor the context.
	ClaimHallucinated ClaimStatus = "hallucinated"
)

// Claim is one case-interprets-statute assertion lifted from an answer
// sentence. Link* fields are filled from the matching link when the
// claim verifies.
type Claim struct {
	CaseName       string                   `json:"case_name,omitempty"`
	CaseCitation   string                   `json:"case_citation"`
	CaseParaNo     int                      `json:"case_para_no,omitempty"`
	StatuteName    string                   `json:"statute_name,omitempty"`
	StatuteSection string                   `json:"statute_section,omitempty"`
	AssertedType   store.InterpretationType `json:"asserted_type,omitempty"`
	Sentence       string                   `json:"sentence"`
	Status         ClaimStatus              `json:"status"`
	Confidence     float64                  `json:"confidence"`

	LinkInterpretationType store.InterpretationType `json:"link_interpretation_type,omitempty"`
	LinkAuthority          store.Authority          `json:"link_authority,omitempty"`
	LinkBoostFactor        float64                  `json:"link_boost_factor,omitempty"`
}

var (
	// citationRe matches neutral citations such as [2013] SGCA 36.
	citationRe = regexp.MustCompile(`\[(\d{4})\]\s+([A-Z]+(?:\([A-Z]+\))?)\s+(\d+)`)

	// pinpointRe matches pinpoint paragraph references: ¶45 or at [45].
	pinpointRe = regexp.MustCompile(`¶\s*(\d+)|\bat\s+\[(\d+)\]`)

	// statuteNameRe matches instrument names ending in Act, Code,
	// Ordinance, Rules or Regulations, plus the Rules of Court.
	statuteNameRe = regexp.MustCompile(`\b(?:[A-Z][A-Za-z'’]*\s+)+(?:Act|Code|Ordinance|Rules|Regulations)(?:\s+\d{4})?\b|\bRules of Court(?:\s+\d{4})?\b`)

	// sectionTokenRe matches provision identifiers: Section 2(1), s 7,
	// Order 9, Rule 16, reg 4.
	sectionTokenRe = regexp.MustCompile(`(?i)\bsections?\s+\d+[A-Za-z]?(?:\(\d+[a-z]?\))*|\bs\.?\s+\d+[A-Za-z]?(?:\(\d+[a-z]?\))*|\border\s+\d+\b|\brule\s+\d+\b|\breg(?:ulation)?\s+\d+\b`)

	// caseNameRe captures a party-v-party name ending right before a
	// citation.
	caseNameRe = regexp.MustCompile(`([A-Z][\w'’.-]*(?:\s+[\w'’.&()-]+)*\s+v\s+[A-Z][\w'’.-]*(?:\s+[\w'’.&()-]+)*)\s*$`)
)

var caseNameLeadIns = []string{"In ", "See ", "Per ", "Citing ", "Under ", "Following "}

// extractClaims finds every sentence that cites a case next to a statute
// reference and emits one claim per citation in it. Sentences citing a
// case without naming any provision carry no checkable claim and are
// skipped.
func extractClaims(answer string) []Claim {
	var claims []Claim
	for _, sentence := range splitSentences(answer) {
		locs := citationRe.FindAllStringIndex(sentence, -1)
		if len(locs) == 0 {
			continue
		}
		name, section := statuteRef(sentence)
		if name == "" && section == "" {
			continue
		}
		for _, loc := range locs {
			c := Claim{
				CaseCitation:   sentence[loc[0]:loc[1]],
				CaseName:       caseNameBefore(sentence, loc[0]),
				CaseParaNo:     pinpointAfter(sentence, loc[1]),
				StatuteName:    name,
				StatuteSection: section,
				AssertedType:   assertedType(sentence),
				Sentence:       sentence,
				Status:         ClaimUnverified,
			}
			c.Confidence = claimConfidence(c)
			claims = append(claims, c)
		}
	}
	return claims
}

// statuteRef returns the first statute name and provision identifier in
// the sentence, either of which may be empty.
func statuteRef(sentence string) (name, section string) {
	name = strings.TrimSpace(statuteNameRe.FindString(sentence))
	section = strings.TrimSpace(sectionTokenRe.FindString(sentence))
	return name, section
}

func caseNameBefore(sentence string, citationStart int) string {
	prefix := strings.TrimRight(sentence[:citationStart], " ,(")
	m := caseNameRe.FindStringSubmatch(prefix)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	for _, lead := range caseNameLeadIns {
		name = strings.TrimPrefix(name, lead)
	}
	return name
}

// pinpointAfter looks for a pinpoint reference in the forty runes after
// the citation, so a later citation's pinpoint is not claimed by an
// earlier one.
func pinpointAfter(sentence string, citationEnd int) int {
	rest := sentence[citationEnd:]
	if r := []rune(rest); len(r) > 40 {
		rest = string(r[:40])
	}
	m := pinpointRe.FindStringSubmatch(rest)
	if m == nil {
		return 0
	}
	for _, g := range m[1:] {
		if g != "" {
			n, _ := strconv.Atoi(g)
			return n
		}
	}
	return 0
}

func assertedType(sentence string) store.InterpretationType {
	lower := strings.ToLower(sentence)
	switch {
	case strings.Contains(lower, "narrow") || strings.Contains(lower, "restrict") ||
		strings.Contains(lower, "limited") || strings.Contains(lower, "confined"):
		return store.InterpNarrow
	case strings.Contains(lower, "broad") || strings.Contains(lower, "extend") ||
		strings.Contains(lower, "expan"):
		return store.InterpBroad
	case strings.Contains(lower, "purposive"):
		return store.InterpPurposive
	case strings.Contains(lower, "literal") || strings.Contains(lower, "plain meaning"):
		return store.InterpLiteral
	case strings.Contains(lower, "clarif") || strings.Contains(lower, "held that") ||
		strings.Contains(lower, "interpret"):
		return store.InterpClarify
	}
	return ""
}

func claimConfidence(c Claim) float64 {
	conf := 0.6
	if c.StatuteSection != "" {
		conf += 0.15
	}
	if c.CaseParaNo > 0 {
		conf += 0.15
	}
	if c.CaseName != "" {
		conf += 0.1
	}
	return conf
}
