//go:build cgo

package denseindex

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/ameetan/go-lexlink/embed"
	"github.com/ameetan/go-lexlink/store"
)

const testDim = 4

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "dense"), testDim)
	if err != nil {
		t.Fatalf("opening index: %v", err)
	}
	t.Cleanup(func() { x.Close() })
	return x
}

// testEmbedder registers orthogonal unit vectors for three fixture texts.
func testEmbedder() *embed.Static {
	return embed.NewStatic(testDim).
		Set("damages for misrepresentation", []float32{1, 0, 0, 0}).
		Set("rescission of the contract", []float32{0, 1, 0, 0}).
		Set("offer of amicable resolution", []float32{0, 0, 1, 0})
}

func testUnits() []store.IndexUnit {
	return []store.IndexUnit{
		{UnitID: "misrepresentation_act_1967_s2", DocType: store.DocStatute, Text: "damages for misrepresentation"},
		{UnitID: "misrepresentation_act_1967_s1", DocType: store.DocStatute, Text: "rescission of the contract"},
		{UnitID: "roc_2021_o_5", DocType: store.DocRule, Text: "offer of amicable resolution"},
	}
}

func buildAndSwap(t *testing.T, x *Index, emb embed.Embedder, units []store.IndexUnit) string {
	t.Helper()
	gen, err := x.Build(context.Background(), emb, units, BuildOptions{Model: "test"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := x.Swap(gen); err != nil {
		t.Fatalf("swap: %v", err)
	}
	return gen
}

func TestSearchBeforeBuild(t *testing.T) {
	x := newTestIndex(t)
	_, err := x.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBuildSwapSearch(t *testing.T) {
	x := newTestIndex(t)
	buildAndSwap(t, x, testEmbedder(), testUnits())

	hits, err := x.Search(context.Background(), []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].UnitID != "misrepresentation_act_1967_s2" {
		t.Errorf("nearest hit = %s, want the exact-match unit", hits[0].UnitID)
	}
	// Exact match has distance 0, so similarity 1/(1+0) = 1.
	if math.Abs(hits[0].Score-1.0) > 1e-6 {
		t.Errorf("exact-match score = %f, want 1.0", hits[0].Score)
	}
	// Orthogonal unit vectors sit at distance sqrt(2).
	want := 1.0 / (1.0 + math.Sqrt2)
	if math.Abs(hits[1].Score-want) > 1e-6 {
		t.Errorf("orthogonal score = %f, want %f", hits[1].Score, want)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %f then %f", hits[0].Score, hits[1].Score)
	}
}

func TestFailedEmbeddingsExcluded(t *testing.T) {
	x := newTestIndex(t)
	emb := testEmbedder()
	delete(emb.Vectors, "offer of amicable resolution")

	gen, err := x.Build(context.Background(), emb, testUnits(), BuildOptions{})
	if err != nil {
		t.Fatalf("build should tolerate per-text failures: %v", err)
	}
	if err := x.Swap(gen); err != nil {
		t.Fatalf("swap: %v", err)
	}

	n, err := x.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("searchable count = %d, want 2", n)
	}

	// The excluded unit holds a zero vector, which is the nearest
	// neighbour of a zero query. It must still never surface.
	hits, err := x.Search(context.Background(), []float32{0, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, h := range hits {
		if h.UnitID == "roc_2021_o_5" {
			t.Errorf("excluded unit surfaced in results")
		}
	}
	if len(hits) != 2 {
		t.Errorf("expected the 2 searchable units, got %d hits", len(hits))
	}
}

func TestDimensionMismatchFatalOnOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dense")
	x, err := Open(dir, testDim)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	buildAndSwap(t, x, testEmbedder(), testUnits())
	x.Close()

	_, err = Open(dir, testDim*2)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for dimension mismatch, got %v", err)
	}
}

func TestBuildRejectsMismatchedEmbedder(t *testing.T) {
	x := newTestIndex(t)
	wrong := embed.NewStatic(testDim * 2)
	if _, err := x.Build(context.Background(), wrong, testUnits(), BuildOptions{}); err == nil {
		t.Fatal("expected error for embedder dimension mismatch")
	}
}

func TestQueryVectorDimension(t *testing.T) {
	x := newTestIndex(t)
	buildAndSwap(t, x, testEmbedder(), testUnits())

	if _, err := x.Search(context.Background(), []float32{1, 0}, 3); err == nil {
		t.Fatal("expected error for wrong query dimension")
	}
}

func TestSwapReplacesGeneration(t *testing.T) {
	x := newTestIndex(t)
	emb := testEmbedder()
	buildAndSwap(t, x, emb, testUnits()[:1])
	gen2 := buildAndSwap(t, x, emb, testUnits()[1:2])

	if x.Generation() != gen2 {
		t.Errorf("live generation = %s, want %s", x.Generation(), gen2)
	}

	hits, err := x.Search(context.Background(), []float32{0, 1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].UnitID != "misrepresentation_act_1967_s1" {
		t.Errorf("new generation content not visible: %v", hits)
	}
}

func TestOpenPicksUpCurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dense")
	x, err := Open(dir, testDim)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	gen := buildAndSwap(t, x, testEmbedder(), testUnits())
	x.Close()

	reopened, err := Open(dir, testDim)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Generation() != gen {
		t.Fatalf("reopened generation = %s, want %s", reopened.Generation(), gen)
	}
	hits, err := reopened.Search(context.Background(), []float32{0, 0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].UnitID != "roc_2021_o_5" {
		t.Errorf("expected rule unit after reopen, got %v", hits)
	}
}

func TestSwapUnknownGeneration(t *testing.T) {
	x := newTestIndex(t)
	if err := x.Swap("does-not-exist"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short text", 100, "short text"},
		{"alpha beta gamma", 12, "alpha beta"},
		{"alpha beta gamma", 10, "alpha"},
		{"unbrokenrun", 6, "unbrok"},
		{"", 10, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestEmbedText(t *testing.T) {
	u := store.IndexUnit{Title: "Damages for misrepresentation", Text: "Where a person has entered into a contract."}
	if got := embedText(&u); got != "Damages for misrepresentation\n\nWhere a person has entered into a contract." {
		t.Errorf("embedText = %q", got)
	}
	bare := store.IndexUnit{Text: "body only"}
	if got := embedText(&bare); got != "body only" {
		t.Errorf("embedText without title = %q", got)
	}
}
