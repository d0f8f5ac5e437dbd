package validation

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ameetan/go-lexlink/store"
)

// fullAnswer works through all four sections and makes one checkable
// claim about the Misrepresentation Act.
const fullAnswer = `**Statute:** Section 2(1) of the Misrepresentation Act provides that "a person who has entered into a contract after a misrepresentation has been made to him by another party thereto and as a result thereof he has suffered loss" may claim damages.

**Judicial Interpretation:** In Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36, ¶158, the Court of Appeal held that Section 2(1) of the Misrepresentation Act requires proof that the misrepresentation induced the contract.

**Synthesis:** While the statute on its face covers any misrepresentation, case law has narrowed it to statements of existing fact, and binding precedent limits recovery to losses flowing from the inducement.

**Practical Effect:** In practice, this means a claimant must plead the precise false statement and show reliance before damages under the Act can be recovered.`

// fabricatedAnswer cites a case that exists nowhere.
const fabricatedAnswer = `**Statute:** Section 7 of the Defamation Act provides the defence of justification where "the words complained of are true in substance and in fact and were published for the public benefit".

**Interpretation:** In Tan Ah Kow v Lim Boon Keng [2025] SGCA 999, ¶12, the Court of Appeal held that Section 7 of the Defamation Act extends the defence to online republication.

**Synthesis:** While the statute is silent on republication, case law has extended the defence, and this interpretation now governs online speech.

**Practical Effect:** In practice, publishers must verify the substance of every statement before republishing.`

// noSynthesisAnswer has strong statute, interpretation and practical
// sections but never connects them.
const noSynthesisAnswer = `**Statute:** Section 2(1) of the Misrepresentation Act provides that "a person who has entered into a contract after a misrepresentation has been made to him" may recover damages.

**Interpretation:** The Court of Appeal held in [2013] SGCA 36, ¶158 that inducement is required.

**Practical Effect:** In practice, a claimant must plead the precise false statement.`

const weakAnswer = "You can strike out a claim if it is bad. The case of Gabriel Peter held you need a reasonable cause of action under the Rules of Court. So basically it is hard to get a claim struck out."

// mixedAnswer makes three claims: one verified, one grounded only in
// context, one fabricated.
const mixedAnswer = `**Statute:** Section 14 of the Employment Act provides that "an employer may dismiss without notice an employee on the grounds of misconduct inconsistent with the fulfilment of the express or implied conditions of his service".

**Interpretation:** In Long Kim Wing v LTX-Credence Singapore Pte Ltd [2017] SGHC 151, ¶33, the High Court held that Section 14 of the Employment Act requires due inquiry before dismissal. In Aldabe Fermin v Standard Chartered Bank [2010] SGHC 119, ¶52, the High Court applied Section 14 of the Employment Act to constructive dismissal. In Phosagro Asia Pte Ltd v Piattchanine [2025] SGCA 777, ¶9, the Court of Appeal held that Section 14 of the Employment Act abolishes the due inquiry requirement.

**Synthesis:** While the statute permits summary dismissal, case law has narrowed it by requiring due inquiry, and this interpretation remains binding precedent.

**Practical Effect:** In practice, an employer must hold a due inquiry before dismissing for misconduct.`

type fakeLinkFinder struct {
	links []store.InterpretationLink
	err   error
	calls int
}

func (f *fakeLinkFinder) FindLink(_ context.Context, caseCitation, statuteName, section string) (*store.InterpretationLink, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.links {
		l := f.links[i]
		if !strings.EqualFold(strings.TrimSpace(l.CaseCitation), strings.TrimSpace(caseCitation)) {
			continue
		}
		gotName := strings.ToLower(l.StatuteName)
		wantName := strings.ToLower(statuteName)
		if wantName != "" && !strings.Contains(gotName, wantName) && !strings.Contains(wantName, gotName) {
			continue
		}
		if section != "" && l.StatuteSection != "" &&
			store.NormalizeSection(section) != store.NormalizeSection(l.StatuteSection) {
			continue
		}
		return &l, nil
	}
	return nil, nil
}

func misrepLink() store.InterpretationLink {
	return store.InterpretationLink{
		StatuteID:          "misrepresentation_act_s2",
		CaseID:             "2013_sgca_36",
		StatuteName:        "Misrepresentation Act",
		StatuteSection:     "2(1)",
		CaseCitation:       "[2013] SGCA 36",
		InterpretationType: store.InterpClarify,
		Authority:          store.AuthorityBinding,
		BoostFactor:        2.8,
		Verified:           true,
	}
}

func misrepContext() []ContextDocument {
	return []ContextDocument{{
		DocID:   "misrepresentation_act_s2",
		Content: `Section 2(1) of the Misrepresentation Act: where a person has entered into a contract after a misrepresentation has been made to him, he may recover damages.`,
		DocType: "statute",
	}}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- sentence splitting ---------------------------------------------------

func TestSplitSentencesKeepsLegalAbbreviations(t *testing.T) {
	got := splitSentences("Under O. 9, r. 16 of the Rules of Court 2021, an action may be struck out. The court agreed!")
	if len(got) != 2 {
		t.Fatalf("got %d sentences %q, want 2", len(got), got)
	}
	if !strings.Contains(got[0], "O. 9, r. 16") {
		t.Errorf("first sentence lost the abbreviation: %q", got[0])
	}
}

func TestSplitSentencesKeepsInitials(t *testing.T) {
	got := splitSentences("Tan A. B. Chuan filed suit. The defendant settled.")
	if len(got) != 2 {
		t.Fatalf("got %d sentences %q, want 2", len(got), got)
	}
	if got[0] != "Tan A. B. Chuan filed suit." {
		t.Errorf("got first sentence %q", got[0])
	}
}

func TestSplitSentencesTrailingRemainder(t *testing.T) {
	got := splitSentences("No terminal punctuation here")
	if len(got) != 1 || got[0] != "No terminal punctuation here" {
		t.Fatalf("got %q", got)
	}
}

// --- claim extraction -----------------------------------------------------

func TestExtractClaimsFromFullAnswer(t *testing.T) {
	claims := extractClaims(fullAnswer)
	if len(claims) != 1 {
		t.Fatalf("got %d claims, want 1: %+v", len(claims), claims)
	}
	c := claims[0]
	if c.CaseCitation != "[2013] SGCA 36" {
		t.Errorf("citation = %q", c.CaseCitation)
	}
	if c.CaseName != "Wee Chiaw Sek Anna v Ng Li-Ann Genevieve" {
		t.Errorf("case name = %q", c.CaseName)
	}
	if c.CaseParaNo != 158 {
		t.Errorf("para = %d, want 158", c.CaseParaNo)
	}
	if c.StatuteName != "Misrepresentation Act" {
		t.Errorf("statute name = %q", c.StatuteName)
	}
	if c.StatuteSection != "Section 2(1)" {
		t.Errorf("statute section = %q", c.StatuteSection)
	}
	if !almostEqual(c.Confidence, 1.0) {
		t.Errorf("confidence = %v, want 1.0", c.Confidence)
	}
}

func TestExtractClaimsSkipsCitationWithoutStatute(t *testing.T) {
	claims := extractClaims("The leading authority is Spandeck Engineering v Defence Science [2007] SGCA 37. It restated the duty of care.")
	if len(claims) != 0 {
		t.Fatalf("got %d claims, want 0: %+v", len(claims), claims)
	}
}

func TestExtractClaimsTwoCitationsOneSentence(t *testing.T) {
	claims := extractClaims("Both Hii Chii Kok v Ooi Peng Jin London Lucien [2017] SGCA 38, ¶92 and Noor Azlin bte Abdul Rahman v Changi General Hospital Pte Ltd [2019] SGCA 13, ¶80 interpreted Section 3 of the Civil Law Act.")
	if len(claims) != 2 {
		t.Fatalf("got %d claims, want 2", len(claims))
	}
	if claims[0].CaseParaNo != 92 || claims[1].CaseParaNo != 80 {
		t.Errorf("pinpoints = %d, %d, want 92, 80", claims[0].CaseParaNo, claims[1].CaseParaNo)
	}
	if claims[1].CaseName != "Noor Azlin bte Abdul Rahman v Changi General Hospital Pte Ltd" {
		t.Errorf("second case name = %q", claims[1].CaseName)
	}
	for _, c := range claims {
		if c.StatuteName != "Civil Law Act" {
			t.Errorf("statute = %q, want Civil Law Act", c.StatuteName)
		}
	}
}

// --- synthesis scoring ----------------------------------------------------

func TestScoreFullAnswer(t *testing.T) {
	res := NewScorer(0).Score(fullAnswer)
	if res.Overall < 0.9 {
		t.Errorf("overall = %v, want >= 0.9", res.Overall)
	}
	if !res.Passed {
		t.Error("full answer should pass")
	}
	if len(res.MissingSections) != 0 {
		t.Errorf("missing sections = %v", res.MissingSections)
	}
	for _, section := range []string{SectionStatute, SectionInterpretation, SectionSynthesis, SectionPractical} {
		if res.SectionScores[section] < 0.9 {
			t.Errorf("section %s = %v, want >= 0.9", section, res.SectionScores[section])
		}
	}
}

func TestScoreMissingSynthesisNeverPasses(t *testing.T) {
	res := NewScorer(0).Score(noSynthesisAnswer)
	if res.Passed {
		t.Fatalf("answer without synthesis passed with overall %v", res.Overall)
	}
	if res.Overall < 0.65 || res.Overall > 0.75 {
		t.Errorf("overall = %v, want about 0.70", res.Overall)
	}
	found := false
	for _, s := range res.MissingSections {
		if s == SectionSynthesis {
			found = true
		}
	}
	if !found {
		t.Errorf("missing sections %v should include %s", res.MissingSections, SectionSynthesis)
	}
}

func TestScoreWeakAnswer(t *testing.T) {
	res := NewScorer(0).Score(weakAnswer)
	if res.Overall >= 0.7 {
		t.Errorf("overall = %v, want < 0.7", res.Overall)
	}
	if res.Passed {
		t.Error("weak answer should not pass")
	}
	if len(res.MissingSections) < 2 {
		t.Errorf("missing sections = %v, want at least interpretation and synthesis", res.MissingSections)
	}
	if len(res.Feedback) == 0 {
		t.Error("weak answer should carry feedback")
	}
	got := res.DetectedPatterns[SectionStatute]
	if len(got) != 1 || got[0] != "statute_name" {
		t.Errorf("statute patterns = %v", got)
	}
}

// --- hallucination detection ----------------------------------------------

func TestDetectVerifiedClaim(t *testing.T) {
	links := &fakeLinkFinder{links: []store.InterpretationLink{misrepLink()}}
	rep, err := NewDetector(links, 0).Detect(context.Background(), fullAnswer, misrepContext())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if rep.TotalClaims != 1 || rep.Verified != 1 {
		t.Fatalf("claims = %d verified = %d, want 1/1", rep.TotalClaims, rep.Verified)
	}
	if !almostEqual(rep.VerificationRate, 1.0) || !almostEqual(rep.HallucinationRate, 0) {
		t.Errorf("rates = %v / %v", rep.VerificationRate, rep.HallucinationRate)
	}
	if !rep.Passed || rep.NeedsReview {
		t.Errorf("passed = %t needsReview = %t", rep.Passed, rep.NeedsReview)
	}
	c := rep.Claims[0]
	if c.Status != ClaimVerified {
		t.Fatalf("status = %s", c.Status)
	}
	if c.LinkAuthority != store.AuthorityBinding || !almostEqual(c.LinkBoostFactor, 2.8) {
		t.Errorf("link fields not copied: %+v", c)
	}
}

func TestDetectContextGroundedClaimIsUnverified(t *testing.T) {
	docs := []ContextDocument{{
		DocID:   "2013_sgca_36_p158",
		Content: "In Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36 the Court of Appeal considered Section 2(1) of the Misrepresentation Act.",
		DocType: "case",
	}}
	rep, err := NewDetector(&fakeLinkFinder{}, 0).Detect(context.Background(), fullAnswer, docs)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if rep.Unverified != 1 || rep.Hallucinated != 0 {
		t.Fatalf("unverified = %d hallucinated = %d, want 1/0", rep.Unverified, rep.Hallucinated)
	}
	if !rep.Passed || !rep.NeedsReview {
		t.Errorf("passed = %t needsReview = %t, want true/true", rep.Passed, rep.NeedsReview)
	}
}

func TestDetectHallucinatedClaim(t *testing.T) {
	docs := []ContextDocument{{
		DocID:   "defamation_act_s7",
		Content: "Section 7 of the Defamation Act: in an action for defamation the defence of justification is made out where the words are true.",
		DocType: "statute",
	}}
	rep, err := NewDetector(&fakeLinkFinder{}, 0).Detect(context.Background(), fabricatedAnswer, docs)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if rep.Hallucinated != 1 {
		t.Fatalf("hallucinated = %d, want 1: %+v", rep.Hallucinated, rep.Claims)
	}
	if rep.HallucinationRate < 0.5 {
		t.Errorf("rate = %v, want >= 0.5", rep.HallucinationRate)
	}
	if rep.Passed {
		t.Error("report should not pass")
	}
	if len(rep.FlaggedSentences) != 1 || !strings.Contains(rep.FlaggedSentences[0], "[2025] SGCA 999") {
		t.Errorf("flagged = %v", rep.FlaggedSentences)
	}
}

// A citation sitting in context next to unrelated text does not ground
// the claim.
func TestDetectCitationNeedsStatuteInSameDoc(t *testing.T) {
	docs := []ContextDocument{{
		DocID:   "2013_sgca_36_p40",
		Content: "In Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36 the court discussed the burden of proving fraud.",
		DocType: "case",
	}}
	rep, err := NewDetector(&fakeLinkFinder{}, 0).Detect(context.Background(), fullAnswer, docs)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if rep.Hallucinated != 1 {
		t.Fatalf("hallucinated = %d, want 1", rep.Hallucinated)
	}
}

func TestDetectLinkStoreErrorDegradesToUnverified(t *testing.T) {
	links := &fakeLinkFinder{err: errors.New("database is locked")}
	rep, err := NewDetector(links, 0).Detect(context.Background(), fullAnswer, misrepContext())
	if err != nil {
		t.Fatalf("Detect should not fail on link-store errors: %v", err)
	}
	if rep.Unverified != 1 {
		t.Fatalf("unverified = %d, want 1", rep.Unverified)
	}
	if len(rep.Warnings) == 0 || !strings.Contains(rep.Warnings[0], "link lookup failed") {
		t.Errorf("warnings = %v", rep.Warnings)
	}
}

func TestDetectClaimCountsConserve(t *testing.T) {
	link := misrepLink()
	link.StatuteID = "employment_act_s14"
	link.CaseID = "2017_sghc_151"
	link.StatuteName = "Employment Act"
	link.StatuteSection = "14"
	link.CaseCitation = "[2017] SGHC 151"
	docs := []ContextDocument{{
		DocID:   "2010_sghc_119_p52",
		Content: "In Aldabe Fermin v Standard Chartered Bank [2010] SGHC 119 the High Court considered the Employment Act and constructive dismissal.",
		DocType: "case",
	}}
	rep, err := NewDetector(&fakeLinkFinder{links: []store.InterpretationLink{link}}, 0).
		Detect(context.Background(), mixedAnswer, docs)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if rep.TotalClaims != 3 {
		t.Fatalf("total = %d, want 3: %+v", rep.TotalClaims, rep.Claims)
	}
	if rep.Verified != 1 || rep.Unverified != 1 || rep.Hallucinated != 1 {
		t.Fatalf("verified/unverified/hallucinated = %d/%d/%d, want 1/1/1",
			rep.Verified, rep.Unverified, rep.Hallucinated)
	}
	if got := rep.Verified + rep.Unverified + rep.Hallucinated; got != rep.TotalClaims {
		t.Errorf("counts sum to %d, want %d", got, rep.TotalClaims)
	}
	if !almostEqual(rep.HallucinationRate, 1.0/3.0) {
		t.Errorf("rate = %v, want 1/3", rep.HallucinationRate)
	}
}

func TestDetectNoClaims(t *testing.T) {
	rep, err := NewDetector(&fakeLinkFinder{}, 0).
		Detect(context.Background(), "The limitation period for contract claims is six years from accrual of the cause of action.", misrepContext())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if rep.TotalClaims != 0 || !rep.Passed || rep.NeedsReview {
		t.Errorf("total = %d passed = %t needsReview = %t", rep.TotalClaims, rep.Passed, rep.NeedsReview)
	}
	if rep.HallucinationRate != 0 || rep.VerificationRate != 0 {
		t.Errorf("rates = %v / %v, want 0 / 0", rep.HallucinationRate, rep.VerificationRate)
	}
}

func TestRemoveHallucinated(t *testing.T) {
	docs := []ContextDocument{{DocID: "d1", Content: "Section 7 of the Defamation Act.", DocType: "statute"}}
	rep, err := NewDetector(&fakeLinkFinder{}, 0).Detect(context.Background(), fabricatedAnswer, docs)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(rep.FlaggedSentences) != 1 {
		t.Fatalf("flagged = %v", rep.FlaggedSentences)
	}
	cleaned := RemoveHallucinated(fabricatedAnswer, rep)
	if strings.Contains(cleaned, "[2025] SGCA 999") {
		t.Error("cleaned answer still cites the fabricated case")
	}
	if strings.Contains(cleaned, rep.FlaggedSentences[0]) {
		t.Error("cleaned answer still contains the flagged sentence")
	}
	if !strings.Contains(fabricatedAnswer, rep.FlaggedSentences[0]) {
		t.Error("original answer was modified")
	}
	if got := RemoveHallucinated(fabricatedAnswer, nil); got != fabricatedAnswer {
		t.Error("nil report should leave the answer unchanged")
	}
}

// --- pipeline ---------------------------------------------------------------

func newTestPipeline(links LinkFinder) *Pipeline {
	return NewPipeline(NewScorer(0), NewDetector(links, 0))
}

func validRequest(answer string, docs []ContextDocument) Request {
	return Request{
		Query:   "When is a misrepresentation claim actionable?",
		Answer:  answer,
		Context: docs,
	}
}

func TestValidatePassDecision(t *testing.T) {
	p := newTestPipeline(&fakeLinkFinder{links: []store.InterpretationLink{misrepLink()}})
	res, err := p.Validate(context.Background(), validRequest(fullAnswer, misrepContext()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Decision != DecisionPass {
		t.Fatalf("decision = %s, want pass: issues %v errors %v", res.Decision, res.Issues, res.Errors)
	}
	if res.Priority != "" {
		t.Errorf("priority = %s, want none", res.Priority)
	}
	if res.CorrelationID == "" {
		t.Error("missing correlation id")
	}
	if res.StagesCompleted != 2 || res.StagesFailed != 0 {
		t.Errorf("stages = %d/%d, want 2/0", res.StagesCompleted, res.StagesFailed)
	}
	if res.Metrics.SynthesisScore < 0.9 {
		t.Errorf("synthesis score = %v", res.Metrics.SynthesisScore)
	}
	if !almostEqual(res.Metrics.CitationScore, 1.0) {
		t.Errorf("citation score = %v, want 1.0", res.Metrics.CitationScore)
	}
	if res.Metrics.HallucinationRate != 0 {
		t.Errorf("hallucination rate = %v", res.Metrics.HallucinationRate)
	}
	if len(res.Issues) != 0 {
		t.Errorf("issues = %v", res.Issues)
	}
	if _, ok := res.StageTimesMs["synthesis"]; !ok {
		t.Error("missing synthesis stage time")
	}
}

func TestValidateRejectDecision(t *testing.T) {
	docs := []ContextDocument{{
		DocID:   "defamation_act_s7",
		Content: "Section 7 of the Defamation Act sets out the defence of justification.",
		DocType: "statute",
	}}
	p := newTestPipeline(&fakeLinkFinder{})
	res, err := p.Validate(context.Background(), validRequest(fabricatedAnswer, docs))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Decision != DecisionReject {
		t.Fatalf("decision = %s, want reject", res.Decision)
	}
	if res.Metrics.HallucinationRate < 0.5 {
		t.Errorf("rate = %v, want >= 0.5", res.Metrics.HallucinationRate)
	}
	found := false
	for _, issue := range res.Issues {
		if strings.Contains(issue, "hallucinated claim") && strings.Contains(issue, "[2025] SGCA 999") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues %v should flag the fabricated citation", res.Issues)
	}
}

func TestValidateMissingSynthesisGoesToReview(t *testing.T) {
	p := newTestPipeline(&fakeLinkFinder{})
	res, err := p.Validate(context.Background(), validRequest(noSynthesisAnswer, misrepContext()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Decision != DecisionReview {
		t.Fatalf("decision = %s, want review", res.Decision)
	}
	if res.Priority != PriorityLow {
		t.Errorf("priority = %s, want low", res.Priority)
	}
	found := false
	for _, issue := range res.Issues {
		if strings.Contains(issue, "missing sections") && strings.Contains(issue, SectionSynthesis) {
			found = true
		}
	}
	if !found {
		t.Errorf("issues %v should name the missing synthesis section", res.Issues)
	}
}

func TestValidateUnverifiedClaimMediumPriority(t *testing.T) {
	answer := `**Statute:** Section 2(1) of the Misrepresentation Act provides that "a person who has entered into a contract after a misrepresentation has been made to him" is entitled to damages.

**Interpretation:** In Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36, ¶158, the Court of Appeal held that Section 2(1) of the Misrepresentation Act requires an operative inducement, and case law has confirmed the point.`
	docs := []ContextDocument{{
		DocID:   "2013_sgca_36_p158",
		Content: "Wee Chiaw Sek Anna v Ng Li-Ann Genevieve [2013] SGCA 36 on the Misrepresentation Act.",
		DocType: "case",
	}}
	p := newTestPipeline(&fakeLinkFinder{})
	res, err := p.Validate(context.Background(), validRequest(answer, docs))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Decision != DecisionReview {
		t.Fatalf("decision = %s, want review: synthesis %v", res.Decision, res.Metrics.SynthesisScore)
	}
	if res.Priority != PriorityMedium {
		t.Errorf("priority = %s, want medium (synthesis %v, unverified %d)",
			res.Priority, res.Metrics.SynthesisScore, res.Hallucination.Unverified)
	}
}

func TestValidateStageFailureRecorded(t *testing.T) {
	p := NewPipeline(NewScorer(0), nil)
	res, err := p.Validate(context.Background(), validRequest(fullAnswer, misrepContext()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.StagesFailed != 1 || res.StagesCompleted != 1 {
		t.Fatalf("stages = %d completed / %d failed, want 1/1", res.StagesCompleted, res.StagesFailed)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.Hallucination != nil {
		t.Error("hallucination report should be absent")
	}
	if res.Decision != DecisionReview || res.Priority != PriorityLow {
		t.Errorf("decision = %s/%s, want review/low", res.Decision, res.Priority)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a degradation warning")
	}
}

func TestValidateLinkStoreErrorStillPasses(t *testing.T) {
	p := newTestPipeline(&fakeLinkFinder{err: errors.New("database is locked")})
	res, err := p.Validate(context.Background(), validRequest(fullAnswer, misrepContext()))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Decision != DecisionPass {
		t.Fatalf("decision = %s, want pass", res.Decision)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected link lookup warnings")
	}
	if res.Hallucination.Unverified != 1 || !res.Hallucination.NeedsReview {
		t.Errorf("report = %+v", res.Hallucination)
	}
}

func TestValidateBadRequest(t *testing.T) {
	p := newTestPipeline(&fakeLinkFinder{})
	cases := []Request{
		{Query: "short", Answer: fullAnswer, Context: misrepContext()},
		{Query: "When is a claim actionable?", Answer: "too short", Context: misrepContext()},
		{Query: "When is a claim actionable?", Answer: fullAnswer},
		{Query: "When is a claim actionable?", Answer: fullAnswer, Context: make([]ContextDocument, 21)},
	}
	for i, req := range cases {
		if _, err := p.Validate(context.Background(), req); !errors.Is(err, ErrBadRequest) {
			t.Errorf("case %d: err = %v, want ErrBadRequest", i, err)
		}
	}
}

func TestValidateBatch(t *testing.T) {
	p := newTestPipeline(&fakeLinkFinder{links: []store.InterpretationLink{misrepLink()}})
	reqs := []Request{
		validRequest(fullAnswer, misrepContext()),
		{Query: "short", Answer: fullAnswer, Context: misrepContext()},
		validRequest(noSynthesisAnswer, misrepContext()),
	}
	batch, err := p.ValidateBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	if batch.BatchID == "" {
		t.Error("missing batch id")
	}
	if batch.Total != 3 {
		t.Errorf("total = %d, want 3", batch.Total)
	}
	if len(batch.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(batch.Results))
	}
	if len(batch.Failed) != 1 || batch.Failed[0].Index != 1 {
		t.Fatalf("failed = %+v, want index 1", batch.Failed)
	}
	if batch.Failed[0].Query != "short" {
		t.Errorf("failed query = %q", batch.Failed[0].Query)
	}
	if batch.Results[0].CorrelationID == batch.Results[1].CorrelationID {
		t.Error("correlation ids should differ")
	}
	if batch.Results[0].Decision != DecisionPass || batch.Results[1].Decision != DecisionReview {
		t.Errorf("decisions = %s, %s", batch.Results[0].Decision, batch.Results[1].Decision)
	}
}

func TestValidateBatchLimits(t *testing.T) {
	p := newTestPipeline(&fakeLinkFinder{})
	if _, err := p.ValidateBatch(context.Background(), nil); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty batch: err = %v", err)
	}
	big := make([]Request, MaxBatchSize+1)
	for i := range big {
		big[i] = validRequest(fullAnswer, misrepContext())
	}
	if _, err := p.ValidateBatch(context.Background(), big); !errors.Is(err, ErrBadRequest) {
		t.Errorf("oversize batch: err = %v", err)
	}
}
