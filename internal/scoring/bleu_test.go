package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentenceBLEU(t *testing.T) {
	scorer := SentenceBLEU{}

	tests := []struct {
		name       string
		hypothesis string
		references []string
		want       float64
		delta      float64
	}{
		{
			name:       "exact match",
			hypothesis: "the cat sat on the mat",
			references: []string{"the cat sat on the mat"},
			want:       100,
		},
		{
			name:       "exact short match",
			hypothesis: "the cat sat",
			references: []string{"the cat sat"},
			want:       100,
		},
		{
			// p1 = 5/5, p2 = 4/5, p3 = 3/4, p4 = 2/3 with add-one
			// smoothing, brevity penalty exp(-0.2).
			name:       "near match with one dropped token",
			hypothesis: "the cat sat on mat",
			references: []string{"the cat sat on the mat"},
			want:       65.11,
			delta:      0.01,
		},
		{
			name:       "single token hypothesis with brevity penalty",
			hypothesis: "the",
			references: []string{"the cat"},
			want:       36.79,
			delta:      0.01,
		},
		{
			name:       "no token overlap",
			hypothesis: "x y z",
			references: []string{"a b c"},
			want:       0,
		},
		{
			name:       "empty hypothesis",
			hypothesis: "",
			references: []string{"a b c"},
			want:       0,
		},
		{
			name:       "whitespace only hypothesis",
			hypothesis: "   \t ",
			references: []string{"a b c"},
			want:       0,
		},
		{
			name:       "empty reference",
			hypothesis: "a b c",
			references: []string{""},
			want:       0,
		},
		{
			name:       "no references",
			hypothesis: "a b c",
			references: nil,
			want:       0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.hypothesis, tt.references)
			if tt.delta > 0 {
				assert.InDelta(t, tt.want, got, tt.delta)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSentenceBLEURanksCloserHypothesesHigher(t *testing.T) {
	scorer := SentenceBLEU{}
	refs := []string{"the quick brown fox jumps over the lazy dog"}

	exact := scorer.Score("the quick brown fox jumps over the lazy dog", refs)
	close := scorer.Score("the quick brown fox jumps over a lazy dog", refs)
	far := scorer.Score("quick fox jumps dog", refs)

	assert.Equal(t, 100.0, exact)
	assert.Greater(t, exact, close)
	assert.Greater(t, close, far)
	assert.Greater(t, far, 0.0)
}

func TestSentenceBLEUClipsRepeatedTokens(t *testing.T) {
	scorer := SentenceBLEU{}

	// "the" occurs twice in the reference, so the third occurrence in
	// the hypothesis earns no credit.
	inflated := scorer.Score("the the the", []string{"the cat the mat"})
	honest := scorer.Score("the the", []string{"the cat the mat"})

	assert.Less(t, inflated, 100.0)
	assert.Greater(t, honest, 0.0)
}

func TestSentenceBLEUCaseSensitive(t *testing.T) {
	scorer := SentenceBLEU{}
	refs := []string{"The Cat"}

	assert.Equal(t, 100.0, scorer.Score("The Cat", refs))
	assert.Equal(t, 0.0, scorer.Score("the cat", refs))
}

func TestSentenceBLEUIsPure(t *testing.T) {
	scorer := SentenceBLEU{}
	refs := []string{"the cat sat on the mat"}

	first := scorer.Score("the cat sat on mat", refs)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scorer.Score("the cat sat on mat", refs))
	}
}
