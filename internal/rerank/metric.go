// Package rerank reorders n-best translation hypotheses by a
// sentence-level quality metric.
//
// The Reranker owns metric selection, the scoring loop, the stable
// ranking computation and the structural reordering of a record's
// parallel fields. Metric math itself lives behind the ScoreProvider
// contract; implementations are collaborators supplied at construction.
package rerank

import (
	"errors"
	"fmt"
	"strings"
)

// Metric identifies a sentence-level reranking metric. Identifiers are
// case-sensitive.
type Metric string

// The recognized metrics. The isometric variants share the isometric-
// prefix and score hypotheses by length compliance with the source
// sentence instead of overlap with a reference.
const (
	MetricBLEU           Metric = "bleu"
	MetricChrF           Metric = "chrf"
	MetricIsometricRatio Metric = "isometric-ratio"
	MetricIsometricDiff  Metric = "isometric-diff"
	MetricIsometricLC    Metric = "isometric-lc"
)

// Metrics returns every recognized metric identifier.
func Metrics() []Metric {
	return []Metric{
		MetricBLEU,
		MetricChrF,
		MetricIsometricRatio,
		MetricIsometricDiff,
		MetricIsometricLC,
	}
}

// ErrUnknownMetric is returned when a metric identifier matches no
// recognized family.
var ErrUnknownMetric = errors.New("unknown reranking metric")

// ParseMetric validates a metric identifier. The error for an
// unrecognized identifier enumerates the valid choices.
func ParseMetric(name string) (Metric, error) {
	m := Metric(name)
	for _, known := range Metrics() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q, choices are: %s", ErrUnknownMetric, name, metricList())
}

func metricList() string {
	names := make([]string, 0, len(Metrics()))
	for _, m := range Metrics() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// Direction selects which end of the score scale ranks first.
type Direction int

const (
	// Descending ranks higher scores first.
	Descending Direction = iota
	// Ascending ranks lower scores first.
	Ascending
)

// Direction returns the ranking direction bound to the metric: every
// metric ranks descending except the length-controlled isometric
// variant, where a lower score means better length compliance.
func (m Metric) Direction() Direction {
	if m == MetricIsometricLC {
		return Ascending
	}
	return Descending
}

// isometric reports whether the metric scores against the source
// sentence rather than a reference translation.
func (m Metric) isometric() bool {
	return strings.HasPrefix(string(m), "isometric-")
}
