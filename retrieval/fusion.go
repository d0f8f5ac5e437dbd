package retrieval

import (
	"sort"

	"github.com/ameetan/go-lexlink/denseindex"
	"github.com/ameetan/go-lexlink/lexindex"
)

// minMaxScale maps scores onto [0,1]. A side where every score is equal
// maps to all ones, so a single hit still carries full weight.
func minMaxScale(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// fuse merges the two sides by unit id: each side is min-max normalized
// independently, then combined as wLex*lex + wDense*dense. The merged list
// is sorted by combined score (unit id breaks exact ties so the ranking is
// deterministic) and capped at kMerge. Units only the dense side returned
// carry scores but no document fields; callers hydrate them from the store.
func fuse(lexHits []lexindex.Hit, denseHits []denseindex.Hit, wLex, wDense float64, kMerge int) []Result {
	byID := make(map[string]*Result, len(lexHits)+len(denseHits))

	lexScores := make([]float64, len(lexHits))
	for i, h := range lexHits {
		lexScores[i] = h.Score
	}
	for i, norm := range minMaxScale(lexScores) {
		h := lexHits[i]
		res := &Result{
			UnitID:   h.UnitID,
			DocType:  h.DocType,
			Title:    h.Title,
			Content:  h.Text,
			Citation: h.Citation,
			Court:    h.Court,
			Year:     h.Year,
			ParaNo:   h.ParaNo,
			LexScore: norm,
			Source:   "lexical",
		}
		if res.Content == "" {
			res.Content = h.Title
		}
		byID[h.UnitID] = res
	}

	denseScores := make([]float64, len(denseHits))
	for i, h := range denseHits {
		denseScores[i] = h.Score
	}
	for i, norm := range minMaxScale(denseScores) {
		h := denseHits[i]
		if res, ok := byID[h.UnitID]; ok {
			res.DenseScore = norm
			res.Source = "hybrid"
			continue
		}
		byID[h.UnitID] = &Result{UnitID: h.UnitID, DenseScore: norm, Source: "dense"}
	}

	fused := make([]Result, 0, len(byID))
	for _, res := range byID {
		res.Score = wLex*res.LexScore + wDense*res.DenseScore
		fused = append(fused, *res)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].UnitID < fused[j].UnitID
	})
	if len(fused) > kMerge {
		fused = fused[:kMerge]
	}
	return fused
}
