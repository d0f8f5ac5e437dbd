package lexindex

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ameetan/go-lexlink/store"
)

const generationDDL = `
CREATE VIRTUAL TABLE units USING fts5(
    unit_id UNINDEXED,
    doc_type UNINDEXED,
    title,
    text,
    citation,
    court UNINDEXED,
    year UNINDEXED,
    para_no UNINDEXED,
    tokenize='porter unicode61'
);

CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Build writes a complete new generation from the given units and returns
// its id. The live generation is untouched; call Swap to make the new one
// visible.
func (x *Index) Build(ctx context.Context, units []store.IndexUnit) (string, error) {
	gen := newGenerationID()
	genDir := filepath.Join(x.dir, gen)
	if err := os.MkdirAll(genDir, 0755); err != nil {
		return "", fmt.Errorf("creating generation directory: %w", err)
	}

	path := filepath.Join(genDir, "index.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return "", fmt.Errorf("opening generation database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, generationDDL); err != nil {
		return "", fmt.Errorf("creating generation schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units (unit_id, doc_type, title, text, citation, court, year, para_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range units {
		u := &units[i]
		_, err := stmt.ExecContext(ctx,
			u.UnitID, string(u.DocType),
			normalizeText(u.Title), normalizeText(u.Text), normalizeText(u.Citation),
			u.Court, u.Year, u.ParaNo,
		)
		if err != nil {
			return "", fmt.Errorf("indexing unit %s: %w", u.UnitID, err)
		}
	}

	builtAt := time.Now().UTC().Format(time.RFC3339)
	for _, kv := range [][2]string{
		{"generation", gen},
		{"unit_count", strconv.Itoa(len(units))},
		{"built_at", builtAt},
	} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("writing metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing generation: %w", err)
	}

	slog.Info("lexical generation built", "generation", gen, "units", len(units))
	return gen, nil
}

// Swap points CURRENT at gen and moves the live handle over. The pointer
// write is a temp-file rename, so a crash leaves either the old or the
// new generation live, never a torn pointer. Searches already running
// finish against the old generation.
func (x *Index) Swap(gen string) error {
	db, err := openGeneration(x.dir, gen)
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
	x.mu.Unlock()

	if old != nil {
		old.Close()
	}
	slog.Info("lexical generation swapped", "from", oldGen, "to", gen)
	return nil
}

func newGenerationID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
