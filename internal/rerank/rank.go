package rerank

import "sort"

// rankIndices returns the permutation that orders scores in the given
// direction. The sort is stable: hypotheses with equal scores keep
// their input order, so the decoder's own ranking breaks ties.
func rankIndices(scores []float64, dir Direction) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if dir == Ascending {
			return scores[idx[a]] < scores[idx[b]]
		}
		return scores[idx[a]] > scores[idx[b]]
	})
	return idx
}
