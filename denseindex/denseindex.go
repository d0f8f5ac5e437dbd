// Package denseindex maintains the dense side of hybrid retrieval: a
// sqlite-vec nearest-neighbour index over unit embeddings plus a JSON
// mapping from vector positions to document IDs. Like the lexical side,
// each build writes a fresh generation directory and a CURRENT pointer
// file is swapped by atomic rename.
package denseindex

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrUnavailable is returned when no generation is live, the live
// generation cannot be opened, or its dimension does not match the
// configured one.
var ErrUnavailable = errors.New("denseindex: index unavailable")

const (
	currentFile = "CURRENT"
	vectorsFile = "vectors.db"
	mappingFile = "mapping.json"
)

// Hit is one nearest-neighbour match. Score folds the L2 distance into
// 1/(1+d) so that larger is better, matching the lexical side.
type Hit struct {
	UnitID string
	Score  float64
}

// Index is a handle on the live dense generation. Safe for concurrent
// use; Swap blocks until in-flight searches on the old generation finish.
type Index struct {
	dir string
	dim int

	mu      sync.RWMutex
	gen     string
	db      *sql.DB
	mapping *Mapping
}

// Open returns an index rooted at dir, attaching to the generation named
// by the CURRENT pointer if one exists. A missing pointer is not an
// error: searches fail with ErrUnavailable until the first Build+Swap.
// A live generation whose dimension differs from dim is fatal.
func Open(dir string, dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	x := &Index{dir: dir, dim: dim}

	gen, err := readCurrent(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return x, nil
		}
		return nil, fmt.Errorf("reading generation pointer: %w", err)
	}

	db, mapping, err := openGeneration(dir, gen, dim)
	if err != nil {
		return nil, fmt.Errorf("%w: generation %s: %v", ErrUnavailable, gen, err)
	}
	x.gen = gen
	x.db = db
	x.mapping = mapping
	return x, nil
}

// Dim returns the dimension the index was opened with.
func (x *Index) Dim() int { return x.dim }

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
	x.mapping = nil
	return err
}

// Count returns the number of searchable vectors in the live generation,
// not counting excluded entries.
func (x *Index) Count() (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.mapping == nil {
		return 0, ErrUnavailable
	}
	return x.mapping.TotalVectors - x.mapping.Failed, nil
}

// Search runs a KNN query against the live generation and returns up to
// k hits by ascending distance. Positions mapped to excluded entries are
// skipped; the query over-fetches by the excluded count so exclusions do
// not shrink the result set.
func (x *Index) Search(ctx context.Context, queryVec []float32, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.db == nil {
		return nil, ErrUnavailable
	}
	if len(queryVec) != x.dim {
		return nil, fmt.Errorf("query vector has dimension %d, index has %d", len(queryVec), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	fetch := k + x.mapping.Failed
	rows, err := x.db.QueryContext(ctx, `
		SELECT position, distance
		FROM vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`,
		serializeFloat32(queryVec), fetch)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var position int
		var distance float64
		if err := rows.Scan(&position, &distance); err != nil {
			return nil, fmt.Errorf("scanning dense hit: %w", err)
		}
		entry, ok := x.mapping.entry(position)
		if !ok || entry.Excluded {
			continue
		}
		hits = append(hits, Hit{UnitID: entry.DocID, Score: 1.0 / (1.0 + distance)})
		if len(hits) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dense hits: %w", err)
	}
	return hits, nil
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

// openGeneration opens a generation's vector database and mapping,
// verifying the mapping dimension against the configured one.
func openGeneration(dir, gen string, dim int) (*sql.DB, *Mapping, error) {
	genDir := filepath.Join(dir, gen)

	mapping, err := loadMapping(filepath.Join(genDir, mappingFile))
	if err != nil {
		return nil, nil, err
	}
	if mapping.Dimension != dim {
		return nil, nil, fmt.Errorf("generation has dimension %d, configured %d", mapping.Dimension, dim)
	}

	path := filepath.Join(genDir, vectorsFile)
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE name = 'vectors'`).Scan(&name); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("generation vector table: %w", err)
	}
	return db, mapping, nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
