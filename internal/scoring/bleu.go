// Package scoring implements the sentence-level metrics the reranker
// scores hypotheses with. Every scorer is a pure function of its
// inputs, safe for concurrent use.
package scoring

import (
	"math"
	"strings"
)

const (
	bleuMaxOrder = 4
	bleuSmoothK  = 1.0
)

// SentenceBLEU is smoothed sentence-level BLEU on whitespace tokens,
// scaled to [0, 100]. Precisions for orders above one are add-k
// smoothed so a single missing 4-gram does not zero the score; the
// unigram precision is left unsmoothed, so a hypothesis sharing no
// token with the reference scores exactly 0.
type SentenceBLEU struct{}

// Score implements the reference scorer contract.
func (SentenceBLEU) Score(hypothesis string, references []string) float64 {
	hyp := strings.Fields(hypothesis)
	if len(hyp) == 0 || len(references) == 0 {
		return 0
	}
	refs := make([][]string, 0, len(references))
	for _, r := range references {
		refs = append(refs, strings.Fields(r))
	}

	// The effective order shrinks with the hypothesis so short outputs
	// are not judged on n-grams they cannot contain.
	order := bleuMaxOrder
	if len(hyp) < order {
		order = len(hyp)
	}

	logPrecisionSum := 0.0
	for n := 1; n <= order; n++ {
		matches, total := clippedMatches(hyp, refs, n)
		var p float64
		if n == 1 {
			if matches == 0 {
				return 0
			}
			p = float64(matches) / float64(total)
		} else {
			p = (float64(matches) + bleuSmoothK) / (float64(total) + bleuSmoothK)
		}
		logPrecisionSum += math.Log(p)
	}
	geometricMean := math.Exp(logPrecisionSum / float64(order))

	return 100 * brevityPenalty(len(hyp), refs) * geometricMean
}

// clippedMatches counts hypothesis n-grams clipped by the maximum
// count any single reference provides, alongside the total number of
// hypothesis n-grams.
func clippedMatches(hyp []string, refs [][]string, n int) (matches, total int) {
	refCounts := make([]map[string]int, 0, len(refs))
	for _, ref := range refs {
		refCounts = append(refCounts, ngramCounts(ref, n))
	}
	for gram, count := range ngramCounts(hyp, n) {
		best := 0
		for _, rc := range refCounts {
			if c := rc[gram]; c > best {
				best = c
			}
		}
		if count < best {
			best = count
		}
		matches += best
	}
	return matches, len(hyp) - n + 1
}

func ngramCounts(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

// brevityPenalty damps scores of hypotheses shorter than the closest
// reference length. Ties between reference lengths favor the shorter.
func brevityPenalty(hypLen int, refs [][]string) float64 {
	closest := 0
	bestDiff := math.MaxInt
	for _, ref := range refs {
		diff := len(ref) - hypLen
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff || (diff == bestDiff && len(ref) < closest) {
			bestDiff = diff
			closest = len(ref)
		}
	}
	if hypLen >= closest {
		return 1
	}
	return math.Exp(1 - float64(closest)/float64(hypLen))
}
