package scoring

import (
	"math"
	"unicode/utf8"
)

// The isometric scorers trade translation confidence against length
// compliance with the source sentence, for output that must fit the
// same screen space or subtitle slot as its source. Each blends the
// hypothesis's model score (a log probability, mapped through exp onto
// (0, 1]) with a length term weighted by alpha. Lengths are counted in
// characters, not tokens.

// IsometricRatio rewards hypotheses whose length ratio to the source
// stays close to one. Higher is better.
type IsometricRatio struct{}

// Score implements the isometric scorer contract.
func (IsometricRatio) Score(hypothesis string, modelScore float64, source string, alpha float64) float64 {
	hypLen := runeLen(hypothesis)
	srcLen := runeLen(source)
	if srcLen == 0 {
		srcLen = 1
	}
	lengthTerm := math.Exp(-math.Abs(1 - hypLen/srcLen))
	return (1-alpha)*math.Exp(modelScore) + alpha*lengthTerm
}

// IsometricDiff rewards hypotheses whose absolute length difference
// from the source is small relative to the longer of the two. Higher
// is better.
type IsometricDiff struct{}

// Score implements the isometric scorer contract.
func (IsometricDiff) Score(hypothesis string, modelScore float64, source string, alpha float64) float64 {
	hypLen := runeLen(hypothesis)
	srcLen := runeLen(source)
	lengthTerm := 1.0
	if longest := math.Max(hypLen, srcLen); longest > 0 {
		lengthTerm = math.Exp(-math.Abs(hypLen-srcLen) / longest)
	}
	return (1-alpha)*math.Exp(modelScore) + alpha*lengthTerm
}

// IsometricLC measures length-compliance cost. Both terms grow with
// badness, so lower is better: the model term is the complement of the
// translation confidence and the length term is the deviation from the
// source length.
type IsometricLC struct{}

// Score implements the isometric scorer contract.
func (IsometricLC) Score(hypothesis string, modelScore float64, source string, alpha float64) float64 {
	hypLen := runeLen(hypothesis)
	srcLen := runeLen(source)
	denom := srcLen
	if denom == 0 {
		denom = 1
	}
	deviation := math.Abs(hypLen-srcLen) / denom
	return (1-alpha)*(1-math.Exp(modelScore)) + alpha*deviation
}

func runeLen(s string) float64 {
	return float64(utf8.RuneCountInString(s))
}
