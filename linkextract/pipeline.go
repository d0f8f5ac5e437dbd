package linkextract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ameetan/go-lexlink/store"
)

// Corpus is the store surface the pipeline reads paragraphs from and
// writes links to. *store.Store satisfies it.
type Corpus interface {
	Roots(ctx context.Context) ([]store.Document, error)
	CaseParagraphs(ctx context.Context, caseID string) ([]store.Document, error)
	DocumentsByType(ctx context.Context, t store.DocType) ([]store.Document, error)
	UpsertLink(ctx context.Context, l store.InterpretationLink) (string, error)
}

// PipelineConfig tunes a full extraction run. A nil Chat disables the
// chat-assisted pass; the rule-based pass always runs.
type PipelineConfig struct {
	Chat             ChatFunc
	Quality          Thresholds
	LLMMaxParagraphs int
}

// Report summarizes one pipeline run. Skipped counts links that passed
// quality but named a statute the corpus does not hold, plus any the
// store rejected.
type Report struct {
	CasesScanned      int      `json:"cases_scanned"`
	ParagraphsScanned int      `json:"paragraphs_scanned"`
	Extracted         int      `json:"extracted"`
	Passed            int      `json:"passed"`
	Upserted          int      `json:"upserted"`
	Skipped           int      `json:"skipped"`
	ElapsedMs         float64  `json:"elapsed_ms"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Pipeline runs extraction end to end: load case paragraphs, extract
// with both passes, merge duplicates, gate on quality, resolve statute
// references against the corpus, and upsert what survives.
type Pipeline struct {
	corpus  Corpus
	rule    *RuleBased
	llm     *LLMAssisted
	quality *QualityValidator
}

func NewPipeline(corpus Corpus, cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		corpus:  corpus,
		rule:    NewRuleBased(),
		quality: NewQualityValidator(cfg.Quality),
	}
	if cfg.Chat != nil {
		p.llm = NewLLMAssisted(cfg.Chat, cfg.LLMMaxParagraphs)
	}
	return p
}

// Run executes one full extraction pass. A chat-assisted failure is a
// warning, not an error: the rule-based links still land.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{}

	paras, caseCount, err := p.loadParagraphs(ctx)
	if err != nil {
		return nil, err
	}
	rep.CasesScanned = caseCount
	rep.ParagraphsScanned = len(paras)

	links := p.rule.Extract(paras).Links

	if p.llm != nil {
		llmRes, err := p.llm.Extract(ctx, paras)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("chat-assisted pass failed: %v", err))
		} else {
			links = append(links, llmRes.Links...)
		}
	}

	links = mergeLinks(links)
	rep.Extracted = len(links)

	passed := p.quality.FilterPassing(links)
	rep.Passed = len(passed)

	index, err := p.statuteIndex(ctx)
	if err != nil {
		return nil, err
	}

	for _, l := range passed {
		id, ok := resolveStatute(index, l.StatuteName, l.StatuteSection)
		if !ok {
			rep.Skipped++
			continue
		}
		l.StatuteID = id
		if _, err := p.corpus.UpsertLink(ctx, l); err != nil {
			rep.Skipped++
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("upsert %s -> %s: %v", id, l.CaseID, err))
			continue
		}
		rep.Upserted++
	}

	rep.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000.0
	slog.Info("link extraction done",
		"cases", rep.CasesScanned,
		"paragraphs", rep.ParagraphsScanned,
		"extracted", rep.Extracted,
		"passed", rep.Passed,
		"upserted", rep.Upserted,
		"skipped", rep.Skipped)
	return rep, nil
}

func (p *Pipeline) loadParagraphs(ctx context.Context) ([]Paragraph, int, error) {
	roots, err := p.corpus.Roots(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("listing roots: %w", err)
	}

	var paras []Paragraph
	caseCount := 0
	for _, root := range roots {
		if root.DocType != store.DocCase {
			continue
		}
		caseCount++
		docs, err := p.corpus.CaseParagraphs(ctx, root.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("loading paragraphs of %s: %w", root.ID, err)
		}
		caseName := root.Parties
		if caseName == "" {
			caseName = root.Title
		}
		for _, d := range docs {
			paras = append(paras, Paragraph{
				ParagraphID: d.ID,
				ParaNo:      d.ParaNo,
				Text:        d.FullText,
				CaseID:      root.ID,
				CaseName:    caseName,
				Citation:    root.Citation,
				Court:       root.Court,
				Year:        root.Year,
			})
		}
	}
	return paras, caseCount, nil
}

// mergeLinks deduplicates by (statute, case paragraph), keeping the
// more confident extraction. The store's upsert applies the same rule
// once placeholder IDs have been resolved, so near-duplicates that
// only converge after resolution still collapse to one row.
func mergeLinks(links []store.InterpretationLink) []store.InterpretationLink {
	byKey := make(map[string]int, len(links))
	var out []store.InterpretationLink
	for _, l := range links {
		key := l.StatuteID + "|" + l.CaseID
		if i, ok := byKey[key]; ok {
			if l.ExtractionConfidence > out[i].ExtractionConfidence {
				out[i] = l
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, l)
	}
	return out
}

var (
	slugStripRe   = regexp.MustCompile(`[^\w\s]`)
	slugSpaceRe   = regexp.MustCompile(`\s+`)
	slugYearendRe = regexp.MustCompile(`_\d{4}$`)
)

// statuteSlug mirrors the identifier normalization ingestion applies
// to statute names, so index keys and citation lookups agree.
func statuteSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "the ")
	if alias, ok := statuteNameAliases[s]; ok {
		s = alias
	}
	s = slugStripRe.ReplaceAllString(s, "")
	return slugSpaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
}

// statuteIndex maps "<name slug>|<section base>" to a corpus document
// ID. Roots are keyed with an empty section so name-only citations
// resolve to the act itself. Every name is indexed with and without a
// trailing year: judgments rarely quote the year the corpus ingested.
func (p *Pipeline) statuteIndex(ctx context.Context) (map[string]string, error) {
	index := make(map[string]string)
	add := func(name, section, id string) {
		if name == "" || id == "" {
			return
		}
		slug := statuteSlug(name)
		keys := []string{slug}
		if bare := slugYearendRe.ReplaceAllString(slug, ""); bare != slug && bare != "" {
			keys = append(keys, bare)
		}
		base := store.SectionBase(section)
		for _, k := range keys {
			key := k + "|" + base
			if _, exists := index[key]; !exists {
				index[key] = id
			}
		}
	}

	for _, t := range []store.DocType{store.DocStatute, store.DocRule} {
		docs, err := p.corpus.DocumentsByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("indexing %s documents: %w", t, err)
		}
		for _, d := range docs {
			switch {
			case d.Level == 0:
				name := d.ActName
				if name == "" {
					name = d.Title
				}
				add(name, "", d.ID)
			case t == store.DocStatute && d.Level == 1 && d.SectionNumber != "":
				add(d.ActName, d.SectionNumber, d.ID)
			}
		}
	}
	return index, nil
}

// resolveStatute finds the corpus document a citation refers to,
// preferring the exact section, then the act root.
func resolveStatute(index map[string]string, name, section string) (string, bool) {
	if name == "" {
		return "", false
	}
	slug := statuteSlug(name)
	bare := slugYearendRe.ReplaceAllString(slug, "")

	tryKeys := []string{slug + "|" + store.SectionBase(section)}
	if bare != slug {
		tryKeys = append(tryKeys, bare+"|"+store.SectionBase(section))
	}
	if section != "" {
		tryKeys = append(tryKeys, slug+"|")
		if bare != slug {
			tryKeys = append(tryKeys, bare+"|")
		}
	}
	for _, k := range tryKeys {
		if id, ok := index[k]; ok {
			return id, true
		}
	}
	return "", false
}
