package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrBadRequest is returned when a validation request fails input checks.
var ErrBadRequest = errors.New("validation: bad request")

// MaxBatchSize is the largest number of requests one batch may carry.
const MaxBatchSize = 50

// Decision thresholds beyond the scorer and detector ones.
const (
	rejectRate   = 0.15
	criticalRate = 0.10
	highRate     = 0.05

	criticalSynthesis = 0.40
	highSynthesis     = 0.55
)

// Decision is the pipeline verdict for one answer.
type Decision string

const (
	DecisionPass   Decision = "pass"
	DecisionReview Decision = "review"
	DecisionReject Decision = "reject"
)

// Priority orders answers sent to human review.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Request is one answer to validate against the context it was
// generated from.
type Request struct {
	Query   string            `json:"query" validate:"required,min=10"`
	Answer  string            `json:"answer" validate:"required,min=50"`
	Context []ContextDocument `json:"context" validate:"required,min=1,max=20,dive"`
}

// Metrics are the headline numbers for one validated answer.
type Metrics struct {
	SynthesisScore    float64 `json:"synthesis_score"`
	CitationScore     float64 `json:"citation_score"`
	HallucinationRate float64 `json:"hallucination_rate"`
	TotalTimeMs       float64 `json:"total_time_ms"`
}

// Result is the full outcome of validating one answer.
type Result struct {
	CorrelationID   string             `json:"correlation_id"`
	Decision        Decision           `json:"decision"`
	Priority        Priority           `json:"priority,omitempty"`
	Metrics         Metrics            `json:"metrics"`
	Synthesis       *SynthesisResult   `json:"synthesis,omitempty"`
	Hallucination   *Report            `json:"hallucination,omitempty"`
	Issues          []string           `json:"issues"`
	Warnings        []string           `json:"warnings,omitempty"`
	Errors          []string           `json:"errors,omitempty"`
	StagesCompleted int                `json:"stages_completed"`
	StagesFailed    int                `json:"stages_failed"`
	StageTimesMs    map[string]float64 `json:"stage_times_ms,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
}

// BatchItemError records one request that could not be validated.
type BatchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	Query string `json:"query"`
}

// BatchResult is the outcome of validating a batch of requests.
type BatchResult struct {
	BatchID   string           `json:"batch_id"`
	Total     int              `json:"total"`
	Results   []*Result        `json:"results"`
	Failed    []BatchItemError `json:"failed,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Pipeline runs synthesis scoring and hallucination detection over one
// answer and combines their outcomes into a decision.
type Pipeline struct {
	scorer   *Scorer
	detector *Detector
	validate *validator.Validate
}

// NewPipeline wires a scorer and a detector. A nil detector skips
// hallucination checking, which counts as a failed stage on every
// request.
func NewPipeline(scorer *Scorer, detector *Detector) *Pipeline {
	if scorer == nil {
		scorer = NewScorer(0)
	}
	return &Pipeline{
		scorer:   scorer,
		detector: detector,
		validate: validator.New(),
	}
}

// Validate checks the request shape, runs both stages and decides. A
// stage failure is recorded on the result and the remaining stages still
// run. A cancelled context aborts between stages; otherwise only a
// malformed request returns an error.
func (p *Pipeline) Validate(ctx context.Context, req Request) (*Result, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	start := time.Now()
	res := &Result{
		CorrelationID: uuid.NewString(),
		Issues:        []string{},
		StageTimesMs:  make(map[string]float64, 2),
		Timestamp:     time.Now().UTC(),
	}

	t0 := time.Now()
	syn := p.scorer.Score(req.Answer)
	res.StageTimesMs["synthesis"] = elapsedMs(t0)
	res.StagesCompleted++
	res.Synthesis = syn
	res.Metrics.SynthesisScore = syn.Overall
	if !syn.Passed {
		res.Issues = append(res.Issues, fmt.Sprintf(
			"synthesis check failed: score %.2f against threshold %.2f",
			syn.Overall, p.scorer.passScore))
		if len(syn.MissingSections) > 0 {
			res.Issues = append(res.Issues,
				"missing sections: "+strings.Join(syn.MissingSections, ", "))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t0 = time.Now()
	rep, err := p.detectStage(ctx, req)
	res.StageTimesMs["hallucination"] = elapsedMs(t0)
	if err != nil {
		res.StagesFailed++
		res.Errors = append(res.Errors, fmt.Sprintf("hallucination stage: %v", err))
		res.Warnings = append(res.Warnings, "hallucination detection unavailable; decided on synthesis alone")
		slog.Warn("validation: hallucination stage failed",
			"correlation_id", res.CorrelationID, "err", err)
	} else {
		res.StagesCompleted++
		res.Hallucination = rep
		res.Metrics.HallucinationRate = rep.HallucinationRate
		res.Metrics.CitationScore = rep.VerificationRate
		res.Warnings = append(res.Warnings, rep.Warnings...)
		for _, c := range rep.Claims {
			if c.Status == ClaimHallucinated {
				res.Issues = append(res.Issues, fmt.Sprintf(
					"hallucinated claim: %s does not interpret %s",
					c.CaseCitation, statuteLabel(c)))
			}
		}
		if rep.Unverified > 0 {
			res.Issues = append(res.Issues, fmt.Sprintf(
				"%d claim(s) grounded only in context, not in the verified link store",
				rep.Unverified))
		}
	}

	p.decide(res, syn, rep)
	res.Metrics.TotalTimeMs = elapsedMs(start)

	slog.Debug("validation: request validated",
		"correlation_id", res.CorrelationID,
		"decision", res.Decision,
		"synthesis_score", res.Metrics.SynthesisScore,
		"hallucination_rate", res.Metrics.HallucinationRate,
		"stages_failed", res.StagesFailed)
	return res, nil
}

func (p *Pipeline) detectStage(ctx context.Context, req Request) (*Report, error) {
	if p.detector == nil {
		return nil, errors.New("no detector configured")
	}
	return p.detector.Detect(ctx, req.Answer, req.Context)
}

// decide applies the decision rule: pass needs both stages clean, a
// heavy hallucination rate rejects outright, everything else goes to
// review with a priority.
func (p *Pipeline) decide(res *Result, syn *SynthesisResult, rep *Report) {
	noErrors := res.StagesFailed == 0 && len(res.Errors) == 0
	rate := res.Metrics.HallucinationRate

	switch {
	case syn.Passed && rep != nil && rep.Passed && noErrors:
		res.Decision = DecisionPass
	case rate > rejectRate:
		res.Decision = DecisionReject
	default:
		res.Decision = DecisionReview
		res.Priority = reviewPriority(res.Metrics.SynthesisScore, rate, rep)
	}
}

func reviewPriority(synthesis, rate float64, rep *Report) Priority {
	unverified := 0
	if rep != nil {
		unverified = rep.Unverified
	}
	switch {
	case rate > criticalRate || synthesis < criticalSynthesis:
		return PriorityCritical
	case rate > highRate || synthesis < highSynthesis:
		return PriorityHigh
	case unverified > 0:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ValidateBatch validates up to MaxBatchSize requests concurrently.
// Per-request failures land in the failed list with the request index;
// they never abort the rest of the batch.
func (p *Pipeline) ValidateBatch(ctx context.Context, reqs []Request) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrBadRequest)
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d exceeds %d", ErrBadRequest, len(reqs), MaxBatchSize)
	}

	results := make([]*Result, len(reqs))
	itemErrs := make([]error, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := p.Validate(gctx, req)
			if err != nil {
				itemErrs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{
		BatchID:   uuid.NewString(),
		Total:     len(reqs),
		Timestamp: time.Now().UTC(),
	}
	for i := range reqs {
		if itemErrs[i] != nil {
			batch.Failed = append(batch.Failed, BatchItemError{
				Index: i,
				Error: itemErrs[i].Error(),
				Query: truncate(reqs[i].Query, 100),
			})
			continue
		}
		batch.Results = append(batch.Results, results[i])
	}
	return batch, nil
}

func statuteLabel(c Claim) string {
	switch {
	case c.StatuteName != "" && c.StatuteSection != "":
		return c.StatuteName + " " + c.StatuteSection
	case c.StatuteName != "":
		return c.StatuteName
	case c.StatuteSection != "":
		return c.StatuteSection
	}
	return "the cited statute"
}

func elapsedMs(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000.0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
