package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsometricRatio(t *testing.T) {
	scorer := IsometricRatio{}

	tests := []struct {
		name       string
		hypothesis string
		modelScore float64
		source     string
		alpha      float64
		want       float64
	}{
		{
			name:       "certain model and exact length",
			hypothesis: "abcdefghij",
			modelScore: 0,
			source:     "abcdefghij",
			alpha:      0.5,
			want:       1,
		},
		{
			name:       "pure length term at half the source length",
			hypothesis: "abcde",
			modelScore: -5,
			source:     "abcdefghij",
			alpha:      1,
			want:       math.Exp(-0.5),
		},
		{
			name:       "pure model term ignores length",
			hypothesis: "ab",
			modelScore: -5,
			source:     "abcdefghij",
			alpha:      0,
			want:       math.Exp(-5),
		},
		{
			name:       "lengths are runes not bytes",
			hypothesis: "héllo",
			modelScore: -2,
			source:     "hello",
			alpha:      1,
			want:       1,
		},
		{
			name:       "empty source does not divide by zero",
			hypothesis: "ab",
			modelScore: 0,
			source:     "",
			alpha:      1,
			want:       math.Exp(-1),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.hypothesis, tt.modelScore, tt.source, tt.alpha)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestIsometricDiff(t *testing.T) {
	scorer := IsometricDiff{}

	tests := []struct {
		name       string
		hypothesis string
		modelScore float64
		source     string
		alpha      float64
		want       float64
	}{
		{
			name:       "equal lengths score the full length term",
			hypothesis: "abc",
			modelScore: 0,
			source:     "xyz",
			alpha:      0.5,
			want:       1,
		},
		{
			name:       "difference normalized by the longer side",
			hypothesis: "ab",
			modelScore: -5,
			source:     "abcd",
			alpha:      1,
			want:       math.Exp(-0.5),
		},
		{
			name:       "both empty",
			hypothesis: "",
			modelScore: -5,
			source:     "",
			alpha:      1,
			want:       1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.hypothesis, tt.modelScore, tt.source, tt.alpha)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestIsometricLC(t *testing.T) {
	scorer := IsometricLC{}

	tests := []struct {
		name       string
		hypothesis string
		modelScore float64
		source     string
		alpha      float64
		want       float64
	}{
		{
			name:       "certain model and exact length cost nothing",
			hypothesis: "abc",
			modelScore: 0,
			source:     "xyz",
			alpha:      0.5,
			want:       0,
		},
		{
			name:       "pure length deviation",
			hypothesis: "abcdef",
			modelScore: 0,
			source:     "abc",
			alpha:      1,
			want:       1,
		},
		{
			name:       "pure model complement",
			hypothesis: "abcdef",
			modelScore: math.Log(0.5),
			source:     "abc",
			alpha:      0,
			want:       0.5,
		},
		{
			name:       "empty source does not divide by zero",
			hypothesis: "ab",
			modelScore: 0,
			source:     "",
			alpha:      1,
			want:       2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.hypothesis, tt.modelScore, tt.source, tt.alpha)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestIsometricLCGrowsWithDeviation(t *testing.T) {
	scorer := IsometricLC{}
	source := "zehn zeichen lang"

	compliant := scorer.Score("zehn zeichen lang", -1, source, 0.5)
	slightly := scorer.Score("zehn zeichen langes", -1, source, 0.5)
	wildly := scorer.Score("eine deutlich zu lange uebersetzung dieses satzes", -1, source, 0.5)

	assert.Less(t, compliant, slightly)
	assert.Less(t, slightly, wildly)
}

func TestIsometricRatioRewardsConfidence(t *testing.T) {
	scorer := IsometricRatio{}

	confident := scorer.Score("gleich lang", -0.1, "gleich lang", 0.5)
	unsure := scorer.Score("gleich lang", -4.0, "gleich lang", 0.5)

	assert.Greater(t, confident, unsure)
}
