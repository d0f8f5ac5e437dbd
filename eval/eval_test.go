package eval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}

func TestPrecisionAtK(t *testing.T) {
	retrieved := []string{"a", "b", "c", "d"}
	relevant := []string{"a", "c", "e"}

	tests := []struct {
		k    int
		want float64
	}{
		{1, 1.0},
		{2, 0.5},
		{4, 0.5},
		{10, 0.5}, // only 4 results to inspect
	}
	for _, tt := range tests {
		if got := PrecisionAtK(retrieved, relevant, tt.k); !almostEqual(got, tt.want) {
			t.Errorf("PrecisionAtK(k=%d) = %.3f, want %.3f", tt.k, got, tt.want)
		}
	}

	if got := PrecisionAtK(nil, relevant, 5); got != 0 {
		t.Errorf("empty retrieval precision = %.3f, want 0", got)
	}
	if got := PrecisionAtK(retrieved, relevant, 0); got != 0 {
		t.Errorf("k=0 precision = %.3f, want 0", got)
	}
}

func TestRecallAtK(t *testing.T) {
	retrieved := []string{"a", "b", "c", "d"}
	relevant := []string{"a", "c", "e"}

	tests := []struct {
		k    int
		want float64
	}{
		{1, 1.0 / 3.0},
		{4, 2.0 / 3.0},
		{10, 2.0 / 3.0}, // "e" was never retrieved
	}
	for _, tt := range tests {
		if got := RecallAtK(retrieved, relevant, tt.k); !almostEqual(got, tt.want) {
			t.Errorf("RecallAtK(k=%d) = %.3f, want %.3f", tt.k, got, tt.want)
		}
	}
}

func TestReciprocalRank(t *testing.T) {
	if got := ReciprocalRank([]string{"a", "b"}, []string{"a"}); !almostEqual(got, 1.0) {
		t.Errorf("first-position RR = %.3f, want 1.0", got)
	}
	if got := ReciprocalRank([]string{"x", "y", "a"}, []string{"a"}); !almostEqual(got, 1.0/3.0) {
		t.Errorf("third-position RR = %.3f, want 1/3", got)
	}
	if got := ReciprocalRank([]string{"x", "y"}, []string{"a"}); got != 0 {
		t.Errorf("miss RR = %.3f, want 0", got)
	}
}

func TestMRR(t *testing.T) {
	if got := MRR([]float64{1.0, 0.5, 0}); !almostEqual(got, 0.5) {
		t.Errorf("MRR = %.3f, want 0.5", got)
	}
	if got := MRR(nil); got != 0 {
		t.Errorf("empty MRR = %.3f, want 0", got)
	}
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.json")
	raw := `{
  "name": "golden",
  "queries": [
    {"query": "damages for misrepresentation", "relevant_ids": ["misrepresentation_act_s2"], "category": "statute-lookup"}
  ]
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	d, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if d.Name != "golden" || len(d.Queries) != 1 {
		t.Errorf("dataset = %q with %d queries", d.Name, len(d.Queries))
	}
	if d.Queries[0].RelevantIDs[0] != "misrepresentation_act_s2" {
		t.Errorf("relevant ids = %v", d.Queries[0].RelevantIDs)
	}

	if _, err := LoadDataset(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should error")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name": "empty", "queries": []}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadDataset(bad); err == nil {
		t.Error("dataset without queries should error")
	}
}

func TestDatasetValidate(t *testing.T) {
	d := &Dataset{Queries: []GoldenQuery{{Query: "", RelevantIDs: []string{"x"}}}}
	if err := d.Validate(); err == nil {
		t.Error("empty query text should fail validation")
	}
	d = &Dataset{Queries: []GoldenQuery{{Query: "something"}}}
	if err := d.Validate(); err == nil {
		t.Error("query without relevant IDs should fail validation")
	}
	if err := SampleDataset().Validate(); err != nil {
		t.Errorf("sample dataset should validate: %v", err)
	}
}

func TestRunnerRun(t *testing.T) {
	dataset := &Dataset{
		Name: "fixture",
		Queries: []GoldenQuery{
			{Query: "alpha", RelevantIDs: []string{"u1", "u2"}},
			{Query: "beta", RelevantIDs: []string{"u7"}},
			{Query: "gamma", RelevantIDs: []string{"u9"}},
		},
	}
	retrieve := func(ctx context.Context, query string) ([]string, error) {
		switch query {
		case "alpha":
			return []string{"u1", "u8", "u2"}, nil
		case "beta":
			return []string{"u3", "u4"}, nil
		default:
			return nil, fmt.Errorf("index unavailable")
		}
	}

	sum, err := NewRunner(retrieve, []int{1, 5}).Run(context.Background(), dataset)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Queries != 3 || sum.Failed != 1 {
		t.Errorf("Queries = %d Failed = %d, want 3 and 1", sum.Queries, sum.Failed)
	}
	if len(sum.PerQuery) != 3 {
		t.Fatalf("PerQuery has %d entries, want 3", len(sum.PerQuery))
	}
	if sum.PerQuery[2].Err == "" || !strings.Contains(sum.PerQuery[2].Err, "index unavailable") {
		t.Errorf("failed query error = %q", sum.PerQuery[2].Err)
	}

	// alpha: P@1=1, P@5=2/3, R@1=1/2, R@5=1, RR=1. beta: all zero.
	if got := sum.MeanPrecisionAt[1]; !almostEqual(got, 0.5) {
		t.Errorf("mean P@1 = %.3f, want 0.5", got)
	}
	if got := sum.MeanPrecisionAt[5]; !almostEqual(got, 1.0/3.0) {
		t.Errorf("mean P@5 = %.3f, want 1/3", got)
	}
	if got := sum.MeanRecallAt[1]; !almostEqual(got, 0.25) {
		t.Errorf("mean R@1 = %.3f, want 0.25", got)
	}
	if got := sum.MeanRecallAt[5]; !almostEqual(got, 0.5) {
		t.Errorf("mean R@5 = %.3f, want 0.5", got)
	}
	if !almostEqual(sum.MRR, 0.5) {
		t.Errorf("MRR = %.3f, want 0.5", sum.MRR)
	}
}

func TestRunnerRequiresRetriever(t *testing.T) {
	if _, err := NewRunner(nil, nil).Run(context.Background(), SampleDataset()); err == nil {
		t.Fatal("Run without a retriever should error")
	}
}
