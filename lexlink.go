package lexlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ameetan/go-lexlink/denseindex"
	"github.com/ameetan/go-lexlink/embed"
	"github.com/ameetan/go-lexlink/ingest"
	"github.com/ameetan/go-lexlink/lexindex"
	"github.com/ameetan/go-lexlink/linkextract"
	"github.com/ameetan/go-lexlink/retrieval"
	"github.com/ameetan/go-lexlink/source"
	"github.com/ameetan/go-lexlink/store"
	"github.com/ameetan/go-lexlink/validation"
)

// Engine is the main entry point for the LexLink retrieval engine.
type Engine interface {
	// IngestFile loads, segments, and stores one source file. The
	// declared type selects the segmenter (statute, case, rule).
	// Re-ingesting unchanged content inserts nothing.
	IngestFile(ctx context.Context, path string, declaredType store.DocType) (*IngestReport, error)

	// IngestSource ingests raw text already in memory.
	IngestSource(ctx context.Context, src ingest.SourceDocument) (*IngestReport, error)

	// Reindex rebuilds both index sides from the corpus and swaps the
	// live generations. The dense side is skipped when no embedding
	// provider is configured.
	Reindex(ctx context.Context) (*ReindexReport, error)

	// ReindexLexical rebuilds only the FTS5 side.
	ReindexLexical(ctx context.Context) (*ReindexReport, error)

	// ReindexDense rebuilds only the vector side.
	ReindexDense(ctx context.Context) (*ReindexReport, error)

	// Retrieve runs one hybrid query with interpretation-link boosting.
	Retrieve(ctx context.Context, query string, opts ...RetrieveOption) ([]retrieval.Result, *retrieval.Trace, error)

	// Validate checks one generated answer against its retrieval context.
	Validate(ctx context.Context, req validation.Request) (*validation.Result, error)

	// ValidateBatch validates up to validation.MaxBatchSize answers.
	ValidateBatch(ctx context.Context, reqs []validation.Request) (*validation.BatchResult, error)

	// ExtractLinks mines interpretation links from the stored case
	// paragraphs and upserts the ones that pass the quality gate. A nil
	// chat function runs the rule-based extractor alone.
	ExtractLinks(ctx context.Context, chat linkextract.ChatFunc) (*linkextract.Report, error)

	// LoadLinkSheet imports a curated link spreadsheet.
	LoadLinkSheet(ctx context.Context, path string) (*SheetReport, error)

	// Documents lists the corpus root documents.
	Documents(ctx context.Context) ([]store.Document, error)

	// Links lists stored interpretation links.
	Links(ctx context.Context, verifiedOnly bool) ([]store.InterpretationLink, error)

	// Stats reports corpus and index counters.
	Stats(ctx context.Context) (*Stats, error)

	// Store returns the underlying store for diagnostic access
	// (e.g. link verification, eval ground-truth checks).
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// IngestReport summarises one ingestion.
type IngestReport struct {
	Path     string        `json:"path,omitempty"`
	RootID   string        `json:"root_id"`
	DocType  store.DocType `json:"doc_type"`
	Segments int           `json:"segments"`
	Inserted int           `json:"inserted"`
	Skipped  []SkippedItem `json:"skipped,omitempty"`
}

// SkippedItem records one node dropped during ingestion and why.
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ReindexReport summarises one index rebuild. A side that was not
// rebuilt keeps an empty generation.
type ReindexReport struct {
	Units           int    `json:"units"`
	LexGeneration   string `json:"lex_generation,omitempty"`
	DenseGeneration string `json:"dense_generation,omitempty"`
	ElapsedMs       int64  `json:"elapsed_ms"`
}

// SheetReport summarises one spreadsheet import.
type SheetReport struct {
	Loaded   int      `json:"loaded"`
	Upserted int      `json:"upserted"`
	Warnings []string `json:"warnings,omitempty"`
}

// Stats reports corpus and index counters. Index counts are zero until
// the first build makes a generation live.
type Stats struct {
	Documents       int                   `json:"documents"`
	ByType          map[store.DocType]int `json:"by_type"`
	Links           int                   `json:"links"`
	VerifiedLinks   int                   `json:"verified_links"`
	LexUnits        int                   `json:"lex_units"`
	LexGeneration   string                `json:"lex_generation,omitempty"`
	DenseUnits      int                   `json:"dense_units"`
	DenseGeneration string                `json:"dense_generation,omitempty"`
	DBPath          string                `json:"db_path"`
}

// RetrieveOption configures a single retrieval.
type RetrieveOption func(*retrieval.Options)

// WithTopK sets the number of results to return, at most
// retrieval.MaxTopK. Out-of-range values use the configured default.
func WithTopK(k int) RetrieveOption {
	return func(o *retrieval.Options) { o.TopK = k }
}

// WithoutInterpretationLinks disables interpretation-link boosting for
// this query, the comparison arm for measuring what the links add.
func WithoutInterpretationLinks() RetrieveOption {
	return func(o *retrieval.Options) { o.WithoutInterpretationLinks = true }
}

// WithMaxInterpretive caps boosted paragraphs per statute in the final
// result page, at most retrieval.MaxPerStatute.
func WithMaxInterpretive(n int) RetrieveOption {
	return func(o *retrieval.Options) { o.MaxInterpretivePerStatute = n }
}

// WithWeights overrides the fusion weights for this query.
func WithWeights(lexical, dense float64) RetrieveOption {
	return func(o *retrieval.Options) {
		o.WeightLexical = lexical
		o.WeightDense = dense
	}
}

// Option configures engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	embedder embed.Embedder
}

// WithEmbedder supplies a caller-built embedder instead of the
// configured provider.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *engineOptions) { o.embedder = e }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	dbPath    string
	store     *store.Store
	lex       *lexindex.Index
	dense     *denseindex.Index
	embedder  embed.Embedder
	retriever *retrieval.Retriever
	pipeline  *validation.Pipeline
	ingester  *ingest.Ingester
}

// New creates a LexLink engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	var eo engineOptions
	for _, o := range opts {
		o(&eo)
	}

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}

	dbPath := cfg.resolveDBPath()
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	dataDir := cfg.resolveDataDir()
	lex, err := lexindex.Open(filepath.Join(dataDir, "lex"))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening lexical index: %w", err)
	}

	dense, err := denseindex.Open(filepath.Join(dataDir, "dense"), cfg.EmbeddingDim)
	if err != nil {
		lex.Close()
		s.Close()
		return nil, fmt.Errorf("opening dense index: %w", err)
	}

	// Without an embedding provider the engine runs lexical-only:
	// retrieval degrades to one side and dense rebuilds are refused.
	embedder := eo.embedder
	if embedder == nil && cfg.Embedding.Provider != "" {
		embedder, err = embed.New(embed.Config{
			Provider: cfg.Embedding.Provider,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
			Dim:      cfg.EmbeddingDim,
		})
		if err != nil {
			dense.Close()
			lex.Close()
			s.Close()
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	retriever := retrieval.New(lex, dense, embedder, s, retrieval.Config{
		TopK:                      cfg.TopK,
		KFetchMultiplier:          cfg.KFetchMultiplier,
		KMerge:                    cfg.KMerge,
		WeightLexical:             cfg.WeightLexical,
		WeightDense:               cfg.WeightDense,
		MaxInterpretivePerStatute: cfg.MaxInterpretivePerStatute,
		SideTimeout:               time.Duration(cfg.SideTimeoutMs) * time.Millisecond,
		CacheMaxBytes:             cfg.CacheMaxBytes,
	})

	pipeline := validation.NewPipeline(
		validation.NewScorer(cfg.SynthesisPassScore),
		validation.NewDetector(s, cfg.MaxHallucinationRate),
	)

	ingester := ingest.New(ingest.Options{MaxRootTextChars: cfg.MaxRootTextChars})

	return &engine{
		cfg:       cfg,
		dbPath:    dbPath,
		store:     s,
		lex:       lex,
		dense:     dense,
		embedder:  embedder,
		retriever: retriever,
		pipeline:  pipeline,
		ingester:  ingester,
	}, nil
}

func (e *engine) IngestFile(ctx context.Context, path string, declaredType store.DocType) (*IngestReport, error) {
	src, err := source.Load(path, declaredType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	rep, err := e.IngestSource(ctx, src)
	if err != nil {
		return nil, err
	}
	rep.Path = path
	return rep, nil
}

func (e *engine) IngestSource(ctx context.Context, src ingest.SourceDocument) (*IngestReport, error) {
	batch, err := e.ingester.Ingest(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	put, err := e.store.PutDocuments(ctx, batch.Documents, false)
	if err != nil {
		return nil, fmt.Errorf("storing documents: %w", err)
	}

	rep := &IngestReport{
		Path:     src.Path,
		RootID:   batch.Root.ID,
		DocType:  batch.Root.DocType,
		Segments: len(batch.Documents),
		Inserted: put.Inserted,
	}
	for _, sk := range batch.Skipped {
		rep.Skipped = append(rep.Skipped, SkippedItem{ID: sk.ID, Reason: sk.Reason})
	}
	for _, sk := range put.Skipped {
		rep.Skipped = append(rep.Skipped, SkippedItem{ID: sk.ID, Reason: sk.Reason})
	}

	slog.Info("ingested source",
		"root", rep.RootID, "type", rep.DocType,
		"segments", rep.Segments, "inserted", rep.Inserted,
		"skipped", len(rep.Skipped))
	return rep, nil
}

func (e *engine) Reindex(ctx context.Context) (*ReindexReport, error) {
	start := time.Now()
	units, err := e.store.IndexUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index units: %w", err)
	}

	rep := &ReindexReport{Units: len(units)}
	if rep.LexGeneration, err = e.buildLexical(ctx, units); err != nil {
		return nil, err
	}
	if e.embedder == nil {
		slog.Info("reindex: no embedding provider, dense side skipped")
	} else if rep.DenseGeneration, err = e.buildDense(ctx, units); err != nil {
		return nil, err
	}

	rep.ElapsedMs = time.Since(start).Milliseconds()
	slog.Info("reindex complete",
		"units", rep.Units,
		"lex_generation", rep.LexGeneration,
		"dense_generation", rep.DenseGeneration,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return rep, nil
}

func (e *engine) ReindexLexical(ctx context.Context) (*ReindexReport, error) {
	start := time.Now()
	units, err := e.store.IndexUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index units: %w", err)
	}
	rep := &ReindexReport{Units: len(units)}
	if rep.LexGeneration, err = e.buildLexical(ctx, units); err != nil {
		return nil, err
	}
	rep.ElapsedMs = time.Since(start).Milliseconds()
	return rep, nil
}

func (e *engine) ReindexDense(ctx context.Context) (*ReindexReport, error) {
	start := time.Now()
	units, err := e.store.IndexUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index units: %w", err)
	}
	rep := &ReindexReport{Units: len(units)}
	if rep.DenseGeneration, err = e.buildDense(ctx, units); err != nil {
		return nil, err
	}
	rep.ElapsedMs = time.Since(start).Milliseconds()
	return rep, nil
}

// buildLexical builds one FTS5 generation and makes it live.
func (e *engine) buildLexical(ctx context.Context, units []store.IndexUnit) (string, error) {
	gen, err := e.lex.Build(ctx, units)
	if err != nil {
		return "", fmt.Errorf("building lexical index: %w", err)
	}
	if err := e.lex.Swap(gen); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return gen, nil
}

// buildDense embeds every unit and makes the new generation live.
func (e *engine) buildDense(ctx context.Context, units []store.IndexUnit) (string, error) {
	if e.embedder == nil {
		return "", fmt.Errorf("%w: no embedding provider configured", ErrEmbedding)
	}
	gen, err := e.dense.Build(ctx, e.embedder, units, denseindex.BuildOptions{
		Model:     e.cfg.Embedding.Model,
		BatchSize: e.cfg.EmbedBatchSize,
		MaxChars:  e.cfg.MaxEmbedChars,
	})
	if err != nil {
		return "", fmt.Errorf("building dense index: %w", err)
	}
	if err := e.dense.Swap(gen); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return gen, nil
}

func (e *engine) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) ([]retrieval.Result, *retrieval.Trace, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil, fmt.Errorf("%w: empty query", ErrBadRequest)
	}

	var o retrieval.Options
	for _, opt := range opts {
		opt(&o)
	}

	results, trace, err := e.retriever.Retrieve(ctx, query, o)
	if err != nil {
		if errors.Is(err, lexindex.ErrUnavailable) || errors.Is(err, denseindex.ErrUnavailable) {
			return nil, trace, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		return nil, trace, err
	}
	return results, trace, nil
}

func (e *engine) Validate(ctx context.Context, req validation.Request) (*validation.Result, error) {
	res, err := e.pipeline.Validate(ctx, req)
	if err != nil {
		if errors.Is(err, validation.ErrBadRequest) {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return nil, err
	}
	return res, nil
}

func (e *engine) ValidateBatch(ctx context.Context, reqs []validation.Request) (*validation.BatchResult, error) {
	res, err := e.pipeline.ValidateBatch(ctx, reqs)
	if err != nil {
		if errors.Is(err, validation.ErrBadRequest) {
			return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return nil, err
	}
	return res, nil
}

func (e *engine) ExtractLinks(ctx context.Context, chat linkextract.ChatFunc) (*linkextract.Report, error) {
	p := linkextract.NewPipeline(e.store, linkextract.PipelineConfig{Chat: chat})
	return p.Run(ctx)
}

func (e *engine) LoadLinkSheet(ctx context.Context, path string) (*SheetReport, error) {
	links, warnings, err := linkextract.NewSheetLoader().Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rep := &SheetReport{Loaded: len(links), Warnings: warnings}
	for _, l := range links {
		if _, err := e.store.UpsertLink(ctx, l); err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("upsert %s -> %s: %v", l.CaseID, l.StatuteID, err))
			continue
		}
		rep.Upserted++
	}

	slog.Info("loaded link sheet",
		"path", path, "loaded", rep.Loaded,
		"upserted", rep.Upserted, "warnings", len(rep.Warnings))
	return rep, nil
}

func (e *engine) Documents(ctx context.Context) ([]store.Document, error) {
	return e.store.Roots(ctx)
}

func (e *engine) Links(ctx context.Context, verifiedOnly bool) ([]store.InterpretationLink, error) {
	links, err := e.store.Links(ctx, verifiedOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkStore, err)
	}
	return links, nil
}

func (e *engine) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: e.dbPath}

	var err error
	if st.Documents, err = e.store.DocumentCount(ctx); err != nil {
		return nil, err
	}
	if st.ByType, err = e.store.CountByType(ctx); err != nil {
		return nil, err
	}
	if st.Links, st.VerifiedLinks, err = e.store.LinkCount(ctx); err != nil {
		return nil, err
	}

	// Index counters are best-effort: before the first build there is
	// no live generation and the counts stay zero.
	if n, err := e.lex.Count(ctx); err == nil {
		st.LexUnits = n
	}
	st.LexGeneration = e.lex.Generation()
	if n, err := e.dense.Count(); err == nil {
		st.DenseUnits = n
	}
	st.DenseGeneration = e.dense.Generation()

	return st, nil
}

func (e *engine) Store() *store.Store { return e.store }

func (e *engine) Close() error {
	err := e.dense.Close()
	if lerr := e.lex.Close(); err == nil {
		err = lerr
	}
	if serr := e.store.Close(); err == nil {
		err = serr
	}
	return err
}
