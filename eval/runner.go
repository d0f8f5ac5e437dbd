package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetrieveFunc runs one query and returns ranked unit IDs, best first.
// The engine adapts its retriever to this; tests use canned rankings.
type RetrieveFunc func(ctx context.Context, query string) ([]string, error)

// QueryResult scores one golden query.
type QueryResult struct {
	Query          string          `json:"query"`
	Category       string          `json:"category,omitempty"`
	Retrieved      []string        `json:"retrieved"`
	PrecisionAt    map[int]float64 `json:"precision_at"`
	RecallAt       map[int]float64 `json:"recall_at"`
	ReciprocalRank float64         `json:"reciprocal_rank"`
	Err            string          `json:"error,omitempty"`
}

// Summary aggregates a dataset run. Means are taken over the queries
// that retrieved without error.
type Summary struct {
	Dataset         string          `json:"dataset"`
	Queries         int             `json:"queries"`
	Failed          int             `json:"failed"`
	MeanPrecisionAt map[int]float64 `json:"mean_precision_at"`
	MeanRecallAt    map[int]float64 `json:"mean_recall_at"`
	MRR             float64         `json:"mrr"`
	PerQuery        []QueryResult   `json:"per_query"`
	ElapsedMs       float64         `json:"elapsed_ms"`
}

// Runner scores a retriever against golden datasets.
type Runner struct {
	retrieve RetrieveFunc
	ks       []int
}

// NewRunner builds a runner reporting at the given cutoffs, or KValues
// when none are given.
func NewRunner(retrieve RetrieveFunc, ks []int) *Runner {
	if len(ks) == 0 {
		ks = KValues
	}
	return &Runner{retrieve: retrieve, ks: ks}
}

// Run scores every query in the dataset. Individual retrieval failures
// are recorded on the query result and excluded from the means; Run
// itself fails only on an invalid dataset or a missing retriever.
func (r *Runner) Run(ctx context.Context, d *Dataset) (*Summary, error) {
	if r.retrieve == nil {
		return nil, fmt.Errorf("no retriever configured")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	sum := &Summary{
		Dataset:         d.Name,
		Queries:         len(d.Queries),
		MeanPrecisionAt: make(map[int]float64, len(r.ks)),
		MeanRecallAt:    make(map[int]float64, len(r.ks)),
		PerQuery:        make([]QueryResult, 0, len(d.Queries)),
	}

	var rrs []float64
	for _, q := range d.Queries {
		qr := QueryResult{
			Query:       q.Query,
			Category:    q.Category,
			PrecisionAt: make(map[int]float64, len(r.ks)),
			RecallAt:    make(map[int]float64, len(r.ks)),
		}

		ids, err := r.retrieve(ctx, q.Query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			qr.Err = err.Error()
			sum.Failed++
			sum.PerQuery = append(sum.PerQuery, qr)
			slog.Warn("eval query failed", "query", q.Query, "err", err)
			continue
		}

		qr.Retrieved = ids
		for _, k := range r.ks {
			qr.PrecisionAt[k] = PrecisionAtK(ids, q.RelevantIDs, k)
			qr.RecallAt[k] = RecallAtK(ids, q.RelevantIDs, k)
		}
		qr.ReciprocalRank = ReciprocalRank(ids, q.RelevantIDs)
		rrs = append(rrs, qr.ReciprocalRank)

		for _, k := range r.ks {
			sum.MeanPrecisionAt[k] += qr.PrecisionAt[k]
			sum.MeanRecallAt[k] += qr.RecallAt[k]
		}
		sum.PerQuery = append(sum.PerQuery, qr)
	}

	if scored := len(rrs); scored > 0 {
		for _, k := range r.ks {
			sum.MeanPrecisionAt[k] /= float64(scored)
			sum.MeanRecallAt[k] /= float64(scored)
		}
	}
	sum.MRR = MRR(rrs)
	sum.ElapsedMs = float64(time.Since(start).Microseconds()) / 1000.0

	slog.Info("eval run done",
		"dataset", d.Name,
		"queries", sum.Queries,
		"failed", sum.Failed,
		"mrr", sum.MRR)
	return sum, nil
}
