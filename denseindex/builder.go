package denseindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ameetan/go-lexlink/embed"
	"github.com/ameetan/go-lexlink/store"
)

// BuildOptions tunes a generation build. Zero values fall back to the
// defaults.
type BuildOptions struct {
	// Model is recorded in the mapping so operators can tell which
	// embedding model a generation was built with.
	Model string

	// BatchSize is the number of texts per embedding call (default 32).
	BatchSize int

	// MaxChars is the truncation budget per text (default 20000).
	// Truncation backs up to a word boundary.
	MaxChars int

	// Parallelism bounds concurrent embedding batches (default 4).
	Parallelism int
}

const (
	defaultBatchSize   = 32
	defaultMaxChars    = 20000
	defaultParallelism = 4
)

// Build embeds the given units and writes a complete new generation,
// returning its id. The live generation is untouched; call Swap to make
// the new one visible. A failed embedding batch falls back to per-text
// calls; texts that still fail get zero vectors and are excluded from
// search rather than aborting the build.
func (x *Index) Build(ctx context.Context, emb embed.Embedder, units []store.IndexUnit, opts BuildOptions) (string, error) {
	if emb.Dim() != x.dim {
		return "", fmt.Errorf("embedder dimension %d, index dimension %d", emb.Dim(), x.dim)
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	texts := make([]string, len(units))
	for i := range units {
		texts[i] = truncate(embedText(&units[i]), maxChars)
	}

	vectors := make([][]float32, len(units))
	excluded := make([]bool, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for start := 0; start < len(texts); start += batch {
		start := start
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := emb.Embed(gctx, texts[start:end])
			if err == nil && len(vecs) == end-start {
				copy(vectors[start:end], vecs)
				return nil
			}
			// One bad text must not take out the whole batch: retry
			// each text alone and exclude only the ones that fail.
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				one, err := emb.Embed(gctx, texts[i:i+1])
				if err != nil || len(one) != 1 {
					slog.Warn("embedding failed, excluding unit",
						"unit", units[i].UnitID, "error", err)
					vectors[i] = make([]float32, x.dim)
					excluded[i] = true
					continue
				}
				vectors[i] = one[0]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("embedding units: %w", err)
	}

	failed := 0
	for i := range vectors {
		if excluded[i] {
			failed++
			continue
		}
		if len(vectors[i]) != x.dim {
			return "", fmt.Errorf("unit %s: embedding has dimension %d, want %d",
				units[i].UnitID, len(vectors[i]), x.dim)
		}
	}

	gen := newGenerationID()
	genDir := filepath.Join(x.dir, gen)
	if err := os.MkdirAll(genDir, 0755); err != nil {
		return "", fmt.Errorf("creating generation directory: %w", err)
	}

	if err := writeVectors(ctx, filepath.Join(genDir, vectorsFile), x.dim, vectors); err != nil {
		return "", err
	}

	mapping := &Mapping{
		Dimension:    x.dim,
		Model:        opts.Model,
		TotalVectors: len(units),
		Failed:       failed,
		Entries:      make([]Entry, len(units)),
	}
	for i := range units {
		mapping.Entries[i] = Entry{DocID: units[i].UnitID, Excluded: excluded[i]}
	}
	if err := mapping.save(filepath.Join(genDir, mappingFile)); err != nil {
		return "", fmt.Errorf("writing mapping: %w", err)
	}

	slog.Info("dense generation built",
		"generation", gen, "vectors", len(units), "failed", failed)
	return gen, nil
}

func writeVectors(ctx context.Context, path string, dim int, vectors [][]float32) error {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return fmt.Errorf("opening generation database: %w", err)
	}
	defer db.Close()

	ddl := fmt.Sprintf(`CREATE VIRTUAL TABLE vectors USING vec0(
		position INTEGER PRIMARY KEY,
		embedding float[%d]
	)`, dim)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating vector table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (position, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, vec := range vectors {
		if _, err := stmt.ExecContext(ctx, i, serializeFloat32(vec)); err != nil {
			return fmt.Errorf("inserting vector %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing generation: %w", err)
	}
	return nil
}

// Swap points CURRENT at gen and moves the live handle over. The pointer
// write is a temp-file rename, so a crash leaves either the old or the
// new generation live, never a torn pointer.
func (x *Index) Swap(gen string) error {
	db, mapping, err := openGeneration(x.dir, gen, x.dim)
	if err != nil {
		return fmt.Errorf("%w: generation %s: %v", ErrUnavailable, gen, err)
	}

	tmp := filepath.Join(x.dir, currentFile+".tmp")
	if err := os.WriteFile(tmp, []byte(gen+"\n"), 0644); err != nil {
		db.Close()
		return fmt.Errorf("writing generation pointer: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(x.dir, currentFile)); err != nil {
		db.Close()
		return fmt.Errorf("swapping generation pointer: %w", err)
	}

	x.mu.Lock()
	old := x.db
	oldGen := x.gen
	x.db = db
	x.gen = gen
	x.mapping = mapping
	x.mu.Unlock()

	if old != nil {
		old.Close()
	}
	slog.Info("dense generation swapped", "from", oldGen, "to", gen)
	return nil
}

// embedText is the unit projection fed to the embedding model: title and
// body, separated by a blank line.
func embedText(u *store.IndexUnit) string {
	if u.Title == "" {
		return u.Text
	}
	return u.Title + "\n\n" + u.Text
}

// truncate clips s at the byte budget, backing up to the previous word
// boundary so no token is cut in half.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		return strings.TrimSpace(cut[:i])
	}
	return strings.ToValidUTF8(cut, "")
}

func newGenerationID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
