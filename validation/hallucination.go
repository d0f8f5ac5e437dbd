package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ameetan/go-lexlink/store"
)

// DefaultMaxHallucinationRate is the highest hallucination rate a
// passing answer may have.
const DefaultMaxHallucinationRate = 0.05

// linkLookupTimeout bounds one link-store query during claim checking.
const linkLookupTimeout = 2 * time.Second

// LinkFinder is the link-store surface the detector needs. *store.Store
// satisfies it.
type LinkFinder interface {
	FindLink(ctx context.Context, caseCitation, statuteName, section string) (*store.InterpretationLink, error)
}

// ContextDocument is one retrieved passage the answer was generated from.
type ContextDocument struct {
	DocID    string  `json:"doc_id" validate:"required"`
	Content  string  `json:"content" validate:"required"`
	DocType  string  `json:"doc_type" validate:"required"`
	Citation string  `json:"citation,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// Report summarizes claim checking for one answer.
type Report struct {
	TotalClaims       int      `json:"total_claims"`
	Verified          int      `json:"verified_claims"`
	Unverified        int      `json:"unverified_claims"`
	Hallucinated      int      `json:"hallucinated_claims"`
	HallucinationRate float64  `json:"hallucination_rate"`
	VerificationRate  float64  `json:"verification_rate"`
	Claims            []Claim  `json:"claims"`
	FlaggedSentences  []string `json:"flagged_sentences,omitempty"`
	Passed            bool     `json:"passed"`
	NeedsReview       bool     `json:"needs_review"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Detector checks answer claims against the verified link store, falling
// back to the retrieved context.
type Detector struct {
	links   LinkFinder
	maxRate float64
}

// NewDetector returns a detector that fails answers whose hallucination
// rate exceeds maxRate. A non-positive maxRate selects
// DefaultMaxHallucinationRate.
func NewDetector(links LinkFinder, maxRate float64) *Detector {
	if maxRate <= 0 {
		maxRate = DefaultMaxHallucinationRate
	}
	return &Detector{links: links, maxRate: maxRate}
}

// MaxRate returns the configured hallucination-rate ceiling.
func (d *Detector) MaxRate() float64 { return d.maxRate }

// Detect extracts every claim from the answer and classifies it:
// verified when a verified interpretation link matches, unverified when
// only the retrieved context grounds it, hallucinated otherwise.
// Link-store failures degrade the affected claims to unverified with a
// report warning rather than failing the whole check.
func (d *Detector) Detect(ctx context.Context, answer string, docs []ContextDocument) (*Report, error) {
	claims := extractClaims(answer)
	rep := &Report{Claims: claims, TotalClaims: len(claims)}

	for i := range rep.Claims {
		c := &rep.Claims[i]
		link, err := d.findLink(ctx, c)
		switch {
		case err != nil:
			c.Status = ClaimUnverified
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("link lookup failed for %s: %v", c.CaseCitation, err))
		case link != nil:
			c.Status = ClaimVerified
			c.LinkInterpretationType = link.InterpretationType
			c.LinkAuthority = link.Authority
			c.LinkBoostFactor = link.BoostFactor
		case citedInContext(*c, docs):
			c.Status = ClaimUnverified
		default:
			c.Status = ClaimHallucinated
			rep.FlaggedSentences = append(rep.FlaggedSentences, c.Sentence)
		}
	}

	for i := range rep.Claims {
		switch rep.Claims[i].Status {
		case ClaimVerified:
			rep.Verified++
		case ClaimHallucinated:
			rep.Hallucinated++
		default:
			rep.Unverified++
		}
	}

	denom := float64(rep.TotalClaims)
	if denom < 1 {
		denom = 1
	}
	rep.HallucinationRate = float64(rep.Hallucinated) / denom
	rep.VerificationRate = float64(rep.Verified) / denom
	rep.Passed = rep.HallucinationRate <= d.maxRate
	rep.NeedsReview = rep.Unverified > 0 || !rep.Passed
	return rep, nil
}

func (d *Detector) findLink(ctx context.Context, c *Claim) (*store.InterpretationLink, error) {
	if d.links == nil {
		return nil, errors.New("no link store configured")
	}
	lctx, cancel := context.WithTimeout(ctx, linkLookupTimeout)
	defer cancel()
	return d.links.FindLink(lctx, c.CaseCitation, c.StatuteName, c.StatuteSection)
}

// citedInContext reports whether the claim's citation appears in a
// context document that also mentions the claimed statute. A citation
// floating in context next to unrelated text does not ground the claim.
func citedInContext(c Claim, docs []ContextDocument) bool {
	for _, doc := range docs {
		if !strings.Contains(doc.Content, c.CaseCitation) &&
			!strings.EqualFold(strings.TrimSpace(doc.Citation), c.CaseCitation) {
			continue
		}
		if mentionsStatute(doc.Content, c) {
			return true
		}
	}
	return false
}

func mentionsStatute(content string, c Claim) bool {
	if c.StatuteName != "" && containsFold(content, c.StatuteName) {
		return true
	}
	if c.StatuteSection != "" {
		want := store.NormalizeSection(c.StatuteSection)
		for _, m := range sectionTokenRe.FindAllString(content, -1) {
			if store.NormalizeSection(m) == want {
				return true
			}
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

var squeezeSpacesRe = regexp.MustCompile(`[ \t]{2,}`)

// RemoveHallucinated returns the answer with every flagged sentence
// deleted. The input strings are not modified, and the result contains
// none of the flagged sentences.
func RemoveHallucinated(answer string, rep *Report) string {
	if rep == nil || len(rep.FlaggedSentences) == 0 {
		return answer
	}
	out := answer
	for _, s := range rep.FlaggedSentences {
		out = strings.ReplaceAll(out, s, "")
	}
	return strings.TrimSpace(squeezeSpacesRe.ReplaceAllString(out, " "))
}
