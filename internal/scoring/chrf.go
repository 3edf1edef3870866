package scoring

import (
	"strings"
	"unicode"
)

const (
	chrfMaxOrder = 6
	chrfBeta     = 2.0
)

// SentenceChrF is the character n-gram F-score, scaled to [0, 100].
// Precision and recall are averaged over character n-gram orders one
// through six, with recall weighted twice as heavily as precision.
// Whitespace is stripped before n-gram extraction, so tokenization
// differences between hypothesis and reference do not count against
// the hypothesis.
type SentenceChrF struct{}

// Score implements the reference scorer contract. With several
// references the best-matching one decides the score.
func (SentenceChrF) Score(hypothesis string, references []string) float64 {
	hyp := []rune(stripSpace(hypothesis))
	best := 0.0
	for _, reference := range references {
		if f := chrF(hyp, []rune(stripSpace(reference))); f > best {
			best = f
		}
	}
	return best
}

func chrF(hyp, ref []rune) float64 {
	var precisionSum, recallSum float64
	orders := 0
	for n := 1; n <= chrfMaxOrder; n++ {
		hypTotal := len(hyp) - n + 1
		refTotal := len(ref) - n + 1
		if hypTotal <= 0 && refTotal <= 0 {
			continue
		}
		orders++

		matches := 0
		if hypTotal > 0 && refTotal > 0 {
			refCounts := charNgramCounts(ref, n)
			for gram, count := range charNgramCounts(hyp, n) {
				if c := refCounts[gram]; c < count {
					matches += c
				} else {
					matches += count
				}
			}
		}
		if hypTotal > 0 {
			precisionSum += float64(matches) / float64(hypTotal)
		}
		if refTotal > 0 {
			recallSum += float64(matches) / float64(refTotal)
		}
	}
	if orders == 0 {
		return 0
	}

	precision := precisionSum / float64(orders)
	recall := recallSum / float64(orders)
	denom := chrfBeta*chrfBeta*precision + recall
	if denom == 0 {
		return 0
	}
	return 100 * (1 + chrfBeta*chrfBeta) * precision * recall / denom
}

func charNgramCounts(runes []rune, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(runes); i++ {
		counts[string(runes[i:i+n])]++
	}
	return counts
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
