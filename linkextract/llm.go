package linkextract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ameetan/go-lexlink/store"
)

// ChatFunc produces a completion for a prompt. The engine wires in
// whichever chat backend is configured; tests supply a canned one.
type ChatFunc func(ctx context.Context, prompt string) (string, error)

const llmPrompt = `Analyze this Singapore court case paragraph for statutory interpretation.

**Case:** %s
**Citation:** %s
**Court:** %s
**Paragraph %d:**
%s

**Task:** Determine whether this paragraph INTERPRETS or APPLIES a statute.

**Rules:**
1. Interpretation means the court explains what a statutory provision MEANS.
2. Application means the court applies a provision to facts without explaining its meaning.
3. A bare mention of a statute is neither.

**If the paragraph interprets or applies a statute, reply with JSON only:**
{"has_interpretation": true, "statute_name": "...", "section": "...", "interpretation_type": "NARROW|BROAD|CLARIFY|PURPOSIVE|LITERAL|APPLY", "holding": "one sentence", "is_binding": true}

**Otherwise reply:**
{"has_interpretation": false}`

// statuteKeywords prefilter paragraphs before any chat call is spent on
// them. Deliberately loose: a false positive costs one call, a false
// negative loses a link.
var statuteKeywords = []string{
	"section", "s.", "act", "statute", "provision", "subsection",
	"paragraph", "rule", "order", "held that", "interpreted",
	"construed", "means", "requires", "applies",
}

type llmFinding struct {
	HasInterpretation  bool   `json:"has_interpretation"`
	StatuteName        string `json:"statute_name"`
	Section            string `json:"section"`
	InterpretationType string `json:"interpretation_type"`
	Holding            string `json:"holding"`
	IsBinding          bool   `json:"is_binding"`
}

// LLMAssisted extracts links by asking a chat model about each
// candidate paragraph. It exists to catch interpretation phrased in
// ways the marker patterns never anticipated; its links carry a flat
// 0.7 confidence so the rule-based pass wins merges when both fire.
type LLMAssisted struct {
	chat          ChatFunc
	concurrency   int
	maxParagraphs int
}

// NewLLMAssisted builds an extractor that asks at most maxParagraphs
// questions per pass. maxParagraphs <= 0 means no limit.
func NewLLMAssisted(chat ChatFunc, maxParagraphs int) *LLMAssisted {
	return &LLMAssisted{chat: chat, concurrency: 10, maxParagraphs: maxParagraphs}
}

// Extract asks the chat backend about every candidate paragraph, a
// bounded number at a time. Individual call failures are logged and
// skipped; Extract fails only when the context is done or no chat
// backend was configured.
func (e *LLMAssisted) Extract(ctx context.Context, paras []Paragraph) (*Result, error) {
	if e.chat == nil {
		return nil, fmt.Errorf("no chat backend configured")
	}
	start := time.Now()

	var candidates []Paragraph
	for _, p := range paras {
		if len(p.Text) > 100 && containsStatuteKeywords(p.Text) {
			candidates = append(candidates, p)
		}
	}
	if e.maxParagraphs > 0 && len(candidates) > e.maxParagraphs {
		candidates = candidates[:e.maxParagraphs]
	}

	res := &Result{Method: store.ExtractLLMAssisted, ParagraphsScanned: len(candidates)}
	cases := make(map[string]bool)
	for _, p := range candidates {
		cases[p.CaseID] = true
	}

	found := make([]*store.InterpretationLink, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, p := range candidates {
		g.Go(func() error {
			finding, err := e.ask(gctx, p)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("chat extraction call failed", "paragraph", p.ParagraphID, "err", err)
				return nil
			}
			if finding == nil {
				return nil
			}
			l := e.link(p, *finding)
			found[i] = &l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, l := range found {
		if l != nil {
			res.Links = append(res.Links, *l)
		}
	}
	res.CasesProcessed = len(cases)
	res.Elapsed = time.Since(start)
	slog.Debug("chat-assisted extraction done",
		"candidates", len(candidates),
		"links", len(res.Links),
		"elapsed", res.Elapsed)
	return res, nil
}

func (e *LLMAssisted) ask(ctx context.Context, p Paragraph) (*llmFinding, error) {
	prompt := fmt.Sprintf(llmPrompt, p.CaseName, p.Citation, p.Court, p.ParaNo, p.Text)
	raw, err := e.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var finding llmFinding
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &finding); err != nil {
		return nil, fmt.Errorf("parsing chat response: %w", err)
	}
	if !finding.HasInterpretation {
		return nil, nil
	}
	if strings.TrimSpace(finding.StatuteName) == "" {
		return nil, fmt.Errorf("chat response claims interpretation but names no statute")
	}
	return &finding, nil
}

func (e *LLMAssisted) link(p Paragraph, f llmFinding) store.InterpretationLink {
	itype := store.InterpretationType(strings.ToUpper(strings.TrimSpace(f.InterpretationType)))
	if !itype.Valid() {
		itype = store.InterpClarify
	}

	// Chat-reported bindingness is trusted only for apex courts, and
	// even then boosted less than a rule-based BINDING grade.
	authority, boost := store.AuthorityPersuasive, 1.8
	if court := strings.ToUpper(p.Court); (court == "SGCA" || court == "CA") && f.IsBinding {
		authority, boost = store.AuthorityBinding, 2.5
	}

	holding := truncateHolding(f.Holding)
	if holding == "" {
		holding = extractHolding(p.Text, StatuteCitation{Name: f.StatuteName, Section: f.Section})
	}

	return store.InterpretationLink{
		StatuteID:            placeholderStatuteID(f.StatuteName, f.Section),
		CaseID:               p.ParagraphID,
		StatuteName:          strings.TrimSpace(f.StatuteName),
		StatuteSection:       strings.TrimSpace(f.Section),
		CaseName:             p.CaseName,
		CaseCitation:         p.Citation,
		CaseParaNo:           p.ParaNo,
		CaseText:             p.Text,
		Court:                p.Court,
		Year:                 p.Year,
		InterpretationType:   itype,
		Authority:            authority,
		Holding:              holding,
		ApplicabilityScore:   0.5,
		BoostFactor:          boost,
		ExtractionMethod:     store.ExtractLLMAssisted,
		ExtractionConfidence: 0.7,
	}
}

func containsStatuteKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range statuteKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractJSONObject trims prose and code fences around the first JSON
// object in a chat reply.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
