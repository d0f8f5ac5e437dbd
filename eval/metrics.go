// Package eval measures retrieval quality against golden datasets:
// queries paired with the unit IDs a good retriever should surface.
package eval

// KValues are the cutoffs at which precision and recall are reported.
var KValues = []int{1, 5, 10}

// PrecisionAtK is the fraction of the top-k retrieved IDs that are
// relevant. The denominator is the number of results actually
// inspected, so a retriever returning fewer than k results is not
// penalized for the shortfall twice.
func PrecisionAtK(retrieved, relevant []string, k int) float64 {
	if k <= 0 || len(retrieved) == 0 || len(relevant) == 0 {
		return 0
	}
	topK := retrieved
	if len(topK) > k {
		topK = topK[:k]
	}
	rel := idSet(relevant)
	hits := 0
	for _, id := range topK {
		if rel[id] {
			hits++
		}
	}
	return float64(hits) / float64(len(topK))
}

// RecallAtK is the fraction of relevant IDs found in the top-k results.
func RecallAtK(retrieved, relevant []string, k int) float64 {
	if k <= 0 || len(retrieved) == 0 || len(relevant) == 0 {
		return 0
	}
	topK := retrieved
	if len(topK) > k {
		topK = topK[:k]
	}
	got := idSet(topK)
	found := 0
	for _, id := range relevant {
		if got[id] {
			found++
		}
	}
	return float64(found) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant result, 0 when none
// of the retrieved IDs are relevant.
func ReciprocalRank(retrieved, relevant []string) float64 {
	rel := idSet(relevant)
	for i, id := range retrieved {
		if rel[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// MRR is the mean of per-query reciprocal ranks.
func MRR(reciprocalRanks []float64) float64 {
	if len(reciprocalRanks) == 0 {
		return 0
	}
	sum := 0.0
	for _, rr := range reciprocalRanks {
		sum += rr
	}
	return sum / float64(len(reciprocalRanks))
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
