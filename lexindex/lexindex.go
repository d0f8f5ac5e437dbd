// Package lexindex maintains the lexical side of hybrid retrieval: an
// FTS5 index over the flat unit projection of the corpus. Each build
// writes a fresh generation directory; a CURRENT pointer file names the
// live generation and is swapped by atomic rename, so rebuilds never
// disturb concurrent readers.
package lexindex

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ameetan/go-lexlink/store"
)

// ErrUnavailable is returned when no generation is live or the live
// generation cannot be opened.
var ErrUnavailable = errors.New("lexindex: index unavailable")

// Field weights for best-field scoring. The best weighted field sets the
// score; the remaining fields contribute at the tie-break rate.
const (
	weightTitle    = 2.0
	weightText     = 1.0
	weightCitation = 1.5
	tieBreak       = 0.3
)

const currentFile = "CURRENT"

// Hit is one lexical match with its best-field BM25 score.
type Hit struct {
	store.IndexUnit
	Score float64
}

// Index is a handle on the live lexical generation. Safe for concurrent
// use; Swap blocks until in-flight searches on the old generation finish.
type Index struct {
	dir string

	mu  sync.RWMutex
	gen string
	db  *sql.DB
}

// Open returns an index rooted at dir, attaching to the generation named
// by the CURRENT pointer if one exists. A missing pointer is not an
// error: searches fail with ErrUnavailable until the first Build+Swap.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	x := &Index{dir: dir}

	gen, err := readCurrent(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return x, nil
		}
		return nil, fmt.Errorf("reading generation pointer: %w", err)
	}

	db, err := openGeneration(dir, gen)
	if err != nil {
		return nil, fmt.Errorf("%w: generation %s: %v", ErrUnavailable, gen, err)
	}
	x.gen = gen
	x.db = db
	return x, nil
}

// Generation returns the live generation id, or "" when none is live.
func (x *Index) Generation() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.gen
}

// Close releases the live generation handle.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.db == nil {
		return nil
	}
	err := x.db.Close()
	x.db = nil
	x.gen = ""
	return err
}

// Count returns the number of units in the live generation.
func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.db == nil {
		return 0, ErrUnavailable
	}
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'unit_count'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading unit count: %w", err)
	}
	return n, nil
}

// Search runs a sanitized full-text query against the live generation and
// returns up to k hits ranked by best-field score: the strongest weighted
// field wins, the other matching fields add a fraction of their weighted
// scores.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.db == nil {
		return nil, ErrUnavailable
	}

	match := sanitizeQuery(query)
	if match == "" {
		return nil, nil
	}

	// Per-field BM25 via zeroed weight vectors; the combined vector in
	// ORDER BY bounds the candidate set before re-ranking in Go.
	rows, err := x.db.QueryContext(ctx, `
		SELECT unit_id, doc_type, title, text, citation, court, year, para_no,
			-bm25(units, 0, 0, 1.0, 0, 0, 0, 0, 0) AS title_score,
			-bm25(units, 0, 0, 0, 1.0, 0, 0, 0, 0) AS text_score,
			-bm25(units, 0, 0, 0, 0, 1.0, 0, 0, 0) AS citation_score
		FROM units
		WHERE units MATCH ?
		ORDER BY bm25(units, 0, 0, ?, ?, ?, 0, 0, 0)
		LIMIT ?`,
		match, weightTitle, weightText, weightCitation, k,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var docType string
		var titleScore, textScore, citationScore float64
		if err := rows.Scan(
			&h.UnitID, &docType, &h.Title, &h.Text, &h.Citation,
			&h.Court, &h.Year, &h.ParaNo,
			&titleScore, &textScore, &citationScore,
		); err != nil {
			return nil, fmt.Errorf("scanning lexical hit: %w", err)
		}
		h.DocType = store.DocType(docType)
		h.Score = bestField(
			weightTitle*titleScore,
			weightText*textScore,
			weightCitation*citationScore,
		)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lexical hits: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// bestField combines weighted per-field scores: the maximum plus a
// tie-break share of the rest.
func bestField(weighted ...float64) float64 {
	best, sum := 0.0, 0.0
	for _, s := range weighted {
		if s > best {
			best = s
		}
		sum += s
	}
	return best + tieBreak*(sum-best)
}

func readCurrent(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, currentFile))
	if err != nil {
		return "", err
	}
	gen := string(bytes.TrimSpace(data))
	if gen == "" {
		return "", fmt.Errorf("empty generation pointer")
	}
	return gen, nil
}

// openGeneration opens a generation database and verifies it is usable.
func openGeneration(dir, gen string) (*sql.DB, error) {
	path := filepath.Join(dir, gen, "index.db")
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	var count string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'unit_count'`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("generation metadata: %w", err)
	}
	return db, nil
}
