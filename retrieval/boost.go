package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ameetan/go-lexlink/store"
)

// caseBoost is one entry of the case -> strongest link lookup.
type caseBoost struct {
	boost     float64
	statuteID string
	itype     store.InterpretationType
}

// applyInterpretationBoost multiplies the scores of retrieved cases that
// interpret an anchor statute and appends linked cases the search missed
// with a synthetic score. Post-boost scores are capped at three times the
// best pre-boost score. Each link-store lookup is bounded by the side
// timeout; failures degrade to the unboosted list.
func (r *Retriever) applyInterpretationBoost(ctx context.Context, results []Result, trace *Trace) []Result {
	anchors := anchorStatutes(results)
	if len(anchors) == 0 {
		slog.Debug("retrieval: no statutes in top-20, skipping interpretation boost")
		return results
	}
	trace.AnchorStatutes = anchors

	lctx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
	links, err := r.links.LinksForStatutes(lctx, anchors, true)
	cancel()
	if err != nil {
		slog.Warn("retrieval: interpretation links unavailable", "error", err)
		trace.Warnings = append(trace.Warnings, fmt.Sprintf("interpretation links: %v", err))
		return results
	}
	trace.LinksFound = len(links)
	if len(links) == 0 {
		return results
	}

	order, boosts := buildBoostMap(links)

	limit := 0.0
	for _, res := range results {
		if res.Score > limit {
			limit = res.Score
		}
	}
	limit *= 3

	existingCases := make(map[string]bool)
	for _, res := range results {
		if res.DocType == store.DocCase {
			existingCases[res.UnitID] = true
		}
	}

	boosted := 0
	for i := range results {
		cb, ok := boosts[results[i].UnitID]
		if !ok {
			continue
		}
		s := results[i].Score * cb.boost
		if s > limit {
			s = limit
		}
		results[i].Score = s
		results[i].BoostedBy = cb.boost
		results[i].InterpretsStatute = cb.statuteID
		results[i].InterpretationType = cb.itype
		boosted++
	}
	trace.Boosted = boosted

	// Synthetic scores hang off the mean of the ten best fused scores so
	// injected cases land near, not above, the strong natural hits.
	avg := 0.5
	if len(results) > 0 {
		n := len(results)
		if n > 10 {
			n = 10
		}
		sum := 0.0
		for _, res := range results[:n] {
			sum += res.Score
		}
		avg = sum / float64(n)
	}

	var missing []string
	for _, caseID := range order {
		if !existingCases[caseID] {
			missing = append(missing, caseID)
		}
	}
	if len(missing) == 0 {
		return results
	}

	uctx, cancel := context.WithTimeout(ctx, r.cfg.SideTimeout)
	units, err := r.links.UnitsByIDs(uctx, missing)
	cancel()
	if err != nil {
		slog.Warn("retrieval: linked case fetch failed", "error", err)
		trace.Warnings = append(trace.Warnings, fmt.Sprintf("linked case fetch: %v", err))
		return results
	}

	injected := make([]Result, 0, len(missing))
	for _, caseID := range missing {
		u, ok := units[caseID]
		if !ok {
			continue
		}
		cb := boosts[caseID]
		content := u.Text
		if content == "" {
			content = u.Title
		}
		score := 0.7 * avg * cb.boost
		if score > limit {
			score = limit
		}
		injected = append(injected, Result{
			UnitID:             u.UnitID,
			DocType:            u.DocType,
			Title:              u.Title,
			Content:            content,
			Citation:           u.Citation,
			Court:              u.Court,
			Year:               u.Year,
			ParaNo:             u.ParaNo,
			Score:              score,
			Source:             "interpretation_link",
			InterpretsStatute:  cb.statuteID,
			InterpretationType: cb.itype,
			Synthetic:          true,
		})
	}
	// Equal-scored injections rank by boost, then recency.
	sort.SliceStable(injected, func(i, j int) bool {
		bi, bj := boosts[injected[i].UnitID].boost, boosts[injected[j].UnitID].boost
		if bi != bj {
			return bi > bj
		}
		if injected[i].Year != injected[j].Year {
			return injected[i].Year > injected[j].Year
		}
		return injected[i].UnitID < injected[j].UnitID
	})
	trace.Injected = len(injected)

	slog.Debug("retrieval: interpretation boost applied",
		"anchors", len(anchors), "links", len(links),
		"boosted", boosted, "injected", len(injected))
	return append(results, injected...)
}

// anchorStatutes collects statute units among the top 20 fused results, in
// rank order.
func anchorStatutes(results []Result) []string {
	n := len(results)
	if n > 20 {
		n = 20
	}
	var ids []string
	for _, res := range results[:n] {
		if res.DocType == store.DocStatute {
			ids = append(ids, res.UnitID)
		}
	}
	return ids
}

// buildBoostMap keys interpretive boosts by case id, returning the case ids
// in first-seen order. Links arrive ordered by boost factor descending, so
// a case interpreting several anchors keeps its strongest boost.
func buildBoostMap(links []store.InterpretationLink) ([]string, map[string]caseBoost) {
	order := make([]string, 0, len(links))
	m := make(map[string]caseBoost, len(links))
	for _, l := range links {
		if _, ok := m[l.CaseID]; ok {
			continue
		}
		m[l.CaseID] = caseBoost{boost: l.BoostFactor, statuteID: l.StatuteID, itype: l.InterpretationType}
		order = append(order, l.CaseID)
	}
	return order, m
}

// diversify sorts by score and walks the list retaining results, capping
// interpretive cases per anchor statute, until k results are kept. The
// stable sort preserves fused order across equal post-boost scores.
func diversify(results []Result, k, maxPerStatute int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	perStatute := make(map[string]int)
	out := make([]Result, 0, k)
	for _, res := range results {
		if res.InterpretsStatute != "" {
			if perStatute[res.InterpretsStatute] >= maxPerStatute {
				continue
			}
			perStatute[res.InterpretsStatute]++
		}
		out = append(out, res)
		if len(out) >= k {
			break
		}
	}
	return out
}
