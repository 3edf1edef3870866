package scoring

import (
	"fmt"

	"github.com/fyrsmithlabs/rerankd/internal/rerank"
)

// Provider resolves the scorers in this package for the reranker. The
// zero value is ready to use.
type Provider struct{}

// NewProvider returns a Provider.
func NewProvider() *Provider {
	return &Provider{}
}

var _ rerank.ScoreProvider = (*Provider)(nil)

// Reference implements rerank.ScoreProvider.
func (*Provider) Reference(m rerank.Metric) (rerank.ReferenceScorer, error) {
	switch m {
	case rerank.MetricBLEU:
		return SentenceBLEU{}, nil
	case rerank.MetricChrF:
		return SentenceChrF{}, nil
	default:
		return nil, fmt.Errorf("no reference scorer for metric %q", m)
	}
}

// Isometric implements rerank.ScoreProvider.
func (*Provider) Isometric(m rerank.Metric) (rerank.IsometricScorer, error) {
	switch m {
	case rerank.MetricIsometricRatio:
		return IsometricRatio{}, nil
	case rerank.MetricIsometricDiff:
		return IsometricDiff{}, nil
	case rerank.MetricIsometricLC:
		return IsometricLC{}, nil
	default:
		return nil, fmt.Errorf("no isometric scorer for metric %q", m)
	}
}
