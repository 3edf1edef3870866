package rerank

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/rerankd/internal/nbest"
)

// DefaultIsometricAlpha is the default blending weight between the
// model score and the length penalty for isometric metrics.
const DefaultIsometricAlpha = 0.5

// Config parameterizes a Reranker.
type Config struct {
	// Metric selects the scoring family and the ranking direction.
	Metric Metric

	// IsometricAlpha weights the length penalty against the model
	// score for isometric metrics. Must be within [0, 1].
	IsometricAlpha float64

	// AttachScores writes the computed scores, in ranked order, onto
	// the reranked record.
	AttachScores bool
}

// NewConfig returns a Config for the metric with the default isometric
// blending weight and score attachment disabled.
func NewConfig(metric Metric) Config {
	return Config{Metric: metric, IsometricAlpha: DefaultIsometricAlpha}
}

// ReferenceScorer scores a hypothesis against reference translations.
// Higher is better. Implementations must be pure: identical inputs
// yield identical scores.
type ReferenceScorer interface {
	Score(hypothesis string, references []string) float64
}

// IsometricScorer blends a hypothesis's model score with a length
// penalty against the source sentence. Whether higher or lower is
// better depends on the variant the scorer was resolved for.
type IsometricScorer interface {
	Score(hypothesis string, modelScore float64, source string, alpha float64) float64
}

// ScoreProvider resolves the scorer implementing a metric. A Reranker
// resolves its scorer once, at construction, and never reconsiders it.
type ScoreProvider interface {
	Reference(m Metric) (ReferenceScorer, error)
	Isometric(m Metric) (IsometricScorer, error)
}

// Sentinel errors for records missing the fields an isometric metric
// scores on. Reference metrics need neither field.
var (
	ErrMissingText   = errors.New("record has no text field required by isometric metrics")
	ErrMissingScores = errors.New("record has no usable scores field required by isometric metrics")
)

// strategy computes one metric score per hypothesis for a single
// record.
type strategy interface {
	scores(rec *nbest.Record, reference string) ([]float64, error)
}

// referenceStrategy scores every hypothesis against the reference
// translation for the record's sentence.
type referenceStrategy struct {
	scorer ReferenceScorer
}

func (s referenceStrategy) scores(rec *nbest.Record, reference string) ([]float64, error) {
	refs := []string{reference}
	out := make([]float64, len(rec.Translations))
	for i, hyp := range rec.Translations {
		out[i] = s.scorer.Score(hyp, refs)
	}
	return out, nil
}

// isometricStrategy blends each hypothesis's primary model score with
// a length penalty against the record's source text. It needs no
// reference.
type isometricStrategy struct {
	scorer IsometricScorer
	alpha  float64
}

func (s isometricStrategy) scores(rec *nbest.Record, _ string) ([]float64, error) {
	if !rec.HasText() {
		return nil, ErrMissingText
	}
	if !rec.HasScores() {
		return nil, ErrMissingScores
	}
	if len(rec.Scores) != len(rec.Translations) {
		return nil, fmt.Errorf("%w: %d score rows for %d hypotheses",
			ErrMissingScores, len(rec.Scores), len(rec.Translations))
	}
	out := make([]float64, len(rec.Translations))
	for i, hyp := range rec.Translations {
		if len(rec.Scores[i]) == 0 {
			return nil, fmt.Errorf("%w: score row %d is empty", ErrMissingScores, i)
		}
		out[i] = s.scorer.Score(hyp, rec.Scores[i][0], rec.Text, s.alpha)
	}
	return out, nil
}

// Reranker reorders the hypotheses of one record at a time. It carries
// no mutable state, so a single instance may rerank any number of
// records, concurrently if needed.
type Reranker struct {
	cfg       Config
	direction Direction
	strategy  strategy
	events    EventSink
}

// New builds a Reranker for cfg, resolving the scoring strategy from
// the provider once. A nil events sink discards all events.
func New(cfg Config, scores ScoreProvider, events EventSink) (*Reranker, error) {
	metric, err := ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	if cfg.IsometricAlpha < 0 || cfg.IsometricAlpha > 1 {
		return nil, fmt.Errorf("isometric alpha must be within [0, 1], got %g", cfg.IsometricAlpha)
	}
	if scores == nil {
		return nil, errors.New("score provider is required")
	}
	if events == nil {
		events = NopSink{}
	}

	r := &Reranker{cfg: cfg, direction: metric.Direction(), events: events}
	if metric.isometric() {
		scorer, err := scores.Isometric(metric)
		if err != nil {
			return nil, fmt.Errorf("resolving scorer for %s: %w", metric, err)
		}
		r.strategy = isometricStrategy{scorer: scorer, alpha: cfg.IsometricAlpha}
		return r, nil
	}
	scorer, err := scores.Reference(metric)
	if err != nil {
		return nil, fmt.Errorf("resolving scorer for %s: %w", metric, err)
	}
	r.strategy = referenceStrategy{scorer: scorer}
	return r, nil
}

// Metric returns the metric the Reranker was built for.
func (r *Reranker) Metric() Metric {
	return r.cfg.Metric
}

// Result is a reranked record together with the scores that produced
// the ranking, when attachment is enabled.
type Result struct {
	// Record is the reordered record. For degenerate input it is the
	// input record itself, untouched.
	Record *nbest.Record

	// Scores holds the per-hypothesis metric scores in ranked order.
	// Nil unless score attachment is enabled and a ranking happened.
	Scores []float64

	// BestScore is Scores[0] when scores are attached.
	BestScore float64

	// Reranked reports whether the hypotheses were actually reordered
	// rather than passed through.
	Reranked bool
}

// Rerank scores every hypothesis of rec against reference, computes a
// stable ranking in the metric's direction and reorders all parallel
// fields of the record accordingly. The input record is not modified.
//
// Records with fewer than two hypotheses pass through untouched and
// unscored; the event sink is told so the caller can surface it.
func (r *Reranker) Rerank(rec *nbest.Record, reference string) (Result, error) {
	n := len(rec.Translations)
	if n <= 1 {
		r.events.NothingToRerank(n)
		return Result{Record: rec}, nil
	}

	scores, err := r.strategy.scores(rec, reference)
	if err != nil {
		return Result{}, err
	}

	perm := rankIndices(scores, r.direction)
	out, err := rec.Permute(perm)
	if err != nil {
		return Result{}, err
	}

	res := Result{Record: out, Reranked: true}
	if r.cfg.AttachScores {
		ranked := make([]float64, n)
		for rank, i := range perm {
			ranked[rank] = scores[i]
		}
		out.AttachScores(ranked)
		res.Scores = ranked
		res.BestScore = ranked[0]
	}
	return res, nil
}
