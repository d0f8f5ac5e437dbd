// Package retrieval implements hybrid retrieval over the lexical and dense
// indexes: weighted score fusion, interpretation-link boosting, synthetic
// injection of linked cases, and per-statute diversification.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ameetan/go-lexlink/denseindex"
	"github.com/ameetan/go-lexlink/embed"
	"github.com/ameetan/go-lexlink/lexindex"
	"github.com/ameetan/go-lexlink/store"
)

// Lexical is the slice of the lexical index the retriever consumes.
type Lexical interface {
	Search(ctx context.Context, query string, k int) ([]lexindex.Hit, error)
}

// Dense is the slice of the dense index the retriever consumes.
type Dense interface {
	Search(ctx context.Context, queryVec []float32, k int) ([]denseindex.Hit, error)
}

// LinkSource resolves interpretation links and hydrates retrieval units
// that only the dense index knows by id. *store.Store satisfies it.
type LinkSource interface {
	LinksForStatutes(ctx context.Context, statuteIDs []string, verifiedOnly bool) ([]store.InterpretationLink, error)
	UnitsByIDs(ctx context.Context, ids []string) (map[string]store.IndexUnit, error)
}

// Config holds retriever defaults applied when an Options field is zero.
type Config struct {
	TopK                      int
	KFetchMultiplier          int
	KMerge                    int
	WeightLexical             float64
	WeightDense               float64
	MaxInterpretivePerStatute int
	SideTimeout               time.Duration
	CacheMaxBytes             int64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.KFetchMultiplier <= 0 {
		c.KFetchMultiplier = 20
	}
	if c.KMerge <= 0 {
		c.KMerge = 500
	}
	if c.WeightLexical == 0 && c.WeightDense == 0 {
		c.WeightLexical, c.WeightDense = 0.4, 0.4
	}
	if c.MaxInterpretivePerStatute <= 0 {
		c.MaxInterpretivePerStatute = 3
	}
	if c.SideTimeout <= 0 {
		c.SideTimeout = 2 * time.Second
	}
	return c
}

// Bounds on per-request overrides. Out-of-range values fall back to the
// configured defaults.
const (
	MaxTopK       = 50
	MaxPerStatute = 10
)

// Options configures a single retrieval. Zero values fall back to the
// retriever configuration; interpretation-link boosting is on unless
// WithoutInterpretationLinks is set.
type Options struct {
	TopK                       int
	WeightLexical              float64
	WeightDense                float64
	MaxInterpretivePerStatute  int
	WithoutInterpretationLinks bool
}

// Result is one ranked retrieval unit. LexScore and DenseScore are the
// min-max normalized per-side scores; Score is their weighted combination
// after any interpretation boost. A result with DocType empty has not been
// hydrated from the store yet and never leaves the package in that state.
type Result struct {
	UnitID             string                   `json:"unit_id"`
	DocType            store.DocType            `json:"doc_type"`
	Title              string                   `json:"title,omitempty"`
	Content            string                   `json:"content"`
	Citation           string                   `json:"citation,omitempty"`
	Court              string                   `json:"court,omitempty"`
	Year               int                      `json:"year,omitempty"`
	ParaNo             int                      `json:"para_no,omitempty"`
	Score              float64                  `json:"score"`
	LexScore           float64                  `json:"lex_score"`
	DenseScore         float64                  `json:"dense_score"`
	Source             string                   `json:"source"`
	BoostedBy          float64                  `json:"boosted_by,omitempty"`
	InterpretsStatute  string                   `json:"interprets_statute,omitempty"`
	InterpretationType store.InterpretationType `json:"interpretation_type,omitempty"`
	Synthetic          bool                     `json:"synthetic,omitempty"`
}

// Trace records the full breakdown of one retrieval.
type Trace struct {
	LexResults     int      `json:"lex_results"`
	DenseResults   int      `json:"dense_results"`
	FusedResults   int      `json:"fused_results"`
	LexWeight      float64  `json:"lex_weight"`
	DenseWeight    float64  `json:"dense_weight"`
	AnchorStatutes []string `json:"anchor_statutes,omitempty"`
	LinksFound     int      `json:"links_found"`
	Boosted        int      `json:"boosted"`
	Injected       int      `json:"injected"`
	LexElapsedMs   int64    `json:"lex_elapsed_ms"`
	DenseElapsedMs int64    `json:"dense_elapsed_ms"`
	ElapsedMs      int64    `json:"elapsed_ms"`
	Warnings       []string `json:"warnings,omitempty"`
	Partial        bool     `json:"partial,omitempty"`
	CacheHit       bool     `json:"cache_hit,omitempty"`
}

// Retriever performs hybrid retrieval. Safe for concurrent use.
type Retriever struct {
	lex      Lexical
	dense    Dense
	embedder embed.Embedder
	links    LinkSource
	cfg      Config
	cache    *resultCache
}

// New creates a retriever over the two index handles. dense and embedder
// may both be nil to run lexical-only; links may be nil to disable
// interpretation boosting and dense-side hydration.
func New(lex Lexical, dense Dense, embedder embed.Embedder, links LinkSource, cfg Config) *Retriever {
	cfg = cfg.withDefaults()
	r := &Retriever{lex: lex, dense: dense, embedder: embedder, links: links, cfg: cfg}
	if cfg.CacheMaxBytes > 0 {
		r.cache = newResultCache(cfg.CacheMaxBytes)
	}
	return r
}

// Retrieve runs the full pipeline: concurrent lexical and dense search,
// min-max normalization, weighted fusion, interpretation-link boosting and
// injection, then per-statute diversification down to TopK results.
// A failed or timed-out side degrades to the other side with a trace
// warning; an error is returned only when no side produced results.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]Result, *Trace, error) {
	if opts.TopK <= 0 || opts.TopK > MaxTopK {
		opts.TopK = r.cfg.TopK
	}
	if opts.WeightLexical == 0 && opts.WeightDense == 0 {
		opts.WeightLexical, opts.WeightDense = r.cfg.WeightLexical, r.cfg.WeightDense
	}
	if opts.MaxInterpretivePerStatute <= 0 || opts.MaxInterpretivePerStatute > MaxPerStatute {
		opts.MaxInterpretivePerStatute = r.cfg.MaxInterpretivePerStatute
	}

	trace := &Trace{}
	start := time.Now()

	key := cacheKey(query, opts)
	if r.cache != nil {
		if hit, ok := r.cache.get(key); ok {
			trace.CacheHit = true
			trace.FusedResults = len(hit)
			trace.ElapsedMs = time.Since(start).Milliseconds()
			return hit, trace, nil
		}
	}

	kFetch := opts.TopK * r.cfg.KFetchMultiplier
	slog.Debug("retrieval: starting hybrid search",
		"query_len", len(query), "top_k", opts.TopK, "k_fetch", kFetch,
		"links", !opts.WithoutInterpretationLinks)

	type lexSide struct {
		hits    []lexindex.Hit
		err     error
		elapsed time.Duration
	}
	type denseSide struct {
		hits    []denseindex.Hit
		err     error
		elapsed time.Duration
	}

	lexCh := make(chan lexSide, 1)
	denseCh := make(chan denseSide, 1)

	go func() {
		t0 := time.Now()
		sctx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
		defer cancel()
		hits, err := r.lex.Search(sctx, query, kFetch)
		lexCh <- lexSide{hits, err, time.Since(t0)}
	}()

	go func() {
		if r.dense == nil || r.embedder == nil {
			denseCh <- denseSide{}
			return
		}
		t0 := time.Now()
		sctx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
		defer cancel()
		hits, err := r.denseSearch(sctx, query, kFetch)
		denseCh <- denseSide{hits, err, time.Since(t0)}
	}()

	lexRes := <-lexCh
	denseRes := <-denseCh

	trace.LexResults = len(lexRes.hits)
	trace.DenseResults = len(denseRes.hits)
	trace.LexElapsedMs = lexRes.elapsed.Milliseconds()
	trace.DenseElapsedMs = denseRes.elapsed.Milliseconds()

	if lexRes.err != nil {
		slog.Warn("retrieval: lexical search failed", "error", lexRes.err)
		trace.Warnings = append(trace.Warnings, fmt.Sprintf("lexical search: %v", lexRes.err))
		if errors.Is(lexRes.err, context.DeadlineExceeded) {
			trace.Partial = true
		}
	}
	if denseRes.err != nil {
		slog.Warn("retrieval: dense search failed", "error", denseRes.err)
		trace.Warnings = append(trace.Warnings, fmt.Sprintf("dense search: %v", denseRes.err))
		if errors.Is(denseRes.err, context.DeadlineExceeded) {
			trace.Partial = true
		}
	}

	if len(lexRes.hits) == 0 && len(denseRes.hits) == 0 {
		trace.ElapsedMs = time.Since(start).Milliseconds()
		if lexRes.err != nil {
			return nil, trace, fmt.Errorf("lexical search: %w", lexRes.err)
		}
		if denseRes.err != nil {
			return nil, trace, fmt.Errorf("dense search: %w", denseRes.err)
		}
		return []Result{}, trace, nil
	}

	// Renormalize the configured weights across the sides that actually
	// returned hits, so a degraded search still spans the full score range.
	wLex, wDense := opts.WeightLexical, opts.WeightDense
	if len(lexRes.hits) == 0 {
		wLex = 0
	}
	if len(denseRes.hits) == 0 {
		wDense = 0
	}
	if sum := wLex + wDense; sum > 0 {
		wLex /= sum
		wDense /= sum
	}
	trace.LexWeight, trace.DenseWeight = wLex, wDense

	fused := fuse(lexRes.hits, denseRes.hits, wLex, wDense, r.cfg.KMerge)

	var pending []string
	for _, res := range fused {
		if res.DocType == "" {
			pending = append(pending, res.UnitID)
		}
	}
	if len(pending) > 0 {
		fused = r.hydrate(ctx, fused, pending, trace)
	}
	trace.FusedResults = len(fused)

	if !opts.WithoutInterpretationLinks && r.links != nil {
		fused = r.applyInterpretationBoost(ctx, fused, trace)
	}

	final := diversify(fused, opts.TopK, opts.MaxInterpretivePerStatute)

	trace.ElapsedMs = time.Since(start).Milliseconds()
	slog.Debug("retrieval: complete",
		"lex_results", trace.LexResults, "dense_results", trace.DenseResults,
		"fused", trace.FusedResults, "boosted", trace.Boosted,
		"injected", trace.Injected, "returned", len(final),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if r.cache != nil {
		r.cache.put(key, final)
	}
	return final, trace, nil
}

// denseSearch embeds the query and searches the vector index.
func (r *Retriever) denseSearch(ctx context.Context, query string, k int) ([]denseindex.Hit, error) {
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}
	return r.dense.Search(ctx, vecs[0], k)
}

// hydrate fills in document fields for units only the dense index returned.
// Units the store no longer knows are dropped; the index and the store can
// diverge briefly between generations.
func (r *Retriever) hydrate(ctx context.Context, fused []Result, ids []string, trace *Trace) []Result {
	var units map[string]store.IndexUnit
	if r.links != nil {
		sctx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
		var err error
		units, err = r.links.UnitsByIDs(sctx, ids)
		cancel()
		if err != nil {
			slog.Warn("retrieval: unit hydration failed", "error", err)
			trace.Warnings = append(trace.Warnings, fmt.Sprintf("unit hydration: %v", err))
			units = nil
		}
	}

	out := make([]Result, 0, len(fused))
	dropped := 0
	for _, res := range fused {
		if res.DocType != "" {
			out = append(out, res)
			continue
		}
		u, ok := units[res.UnitID]
		if !ok {
			dropped++
			continue
		}
		res.DocType = u.DocType
		res.Title = u.Title
		res.Content = u.Text
		if res.Content == "" {
			res.Content = u.Title
		}
		res.Citation = u.Citation
		res.Court = u.Court
		res.Year = u.Year
		res.ParaNo = u.ParaNo
		out = append(out, res)
	}
	if dropped > 0 {
		trace.Warnings = append(trace.Warnings,
			fmt.Sprintf("dense index referenced %d unknown units", dropped))
	}
	return out
}

func cacheKey(query string, opts Options) string {
	return fmt.Sprintf("%s|%d|%.4f|%.4f|%d|%t",
		query, opts.TopK, opts.WeightLexical, opts.WeightDense,
		opts.MaxInterpretivePerStatute, opts.WithoutInterpretationLinks)
}
