// Package nbest models one sentence's n-best translation candidates.
//
// A record arrives as a single JSON object carrying a translations
// array and, depending on the producing decoder, per-hypothesis model
// scores and the source text. Fields outside that schema are preserved:
// arrays running parallel to the translations (same length) are
// reordered together with them, everything else passes through
// unchanged.
package nbest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire field names shared by the decoder and the encoder.
const (
	fieldTranslations = "translations"
	fieldScores       = "scores"
	fieldText         = "text"
	fieldBestScore    = "score"
)

// ErrNoTranslations is returned when a record lacks the translations
// field. Reranking requires nbest input with translations present.
var ErrNoTranslations = errors.New("nbest record has no translations field")

// Record is one sentence's candidate set. Translations, Scores and Text
// are the schema fields the reranker operates on; anything else found
// on the wire is kept verbatim and reordered only when it is an array
// parallel to the translations.
type Record struct {
	// Translations holds the hypotheses, best-first once reranked.
	Translations []string
	// Scores carries the upstream model scores, one row per hypothesis.
	Scores [][]float64
	// Text is the source sentence.
	Text string

	hasScores bool
	hasText   bool

	// extra preserves fields outside the schema, keyed by wire name.
	extra map[string]json.RawMessage

	// attached replaces Scores on output once a reranking pass has
	// recorded its sentence-level scores in ranked order.
	attached []float64
}

// New builds a record from its schema fields. A nil scores slice and an
// empty text mark those fields absent.
func New(translations []string, scores [][]float64, text string) *Record {
	rec := &Record{Translations: translations}
	if scores != nil {
		rec.Scores = scores
		rec.hasScores = true
	}
	if text != "" {
		rec.Text = text
		rec.hasText = true
	}
	return rec
}

// Decode parses one line of nbest JSON into a Record.
func Decode(line []byte) (*Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("decoding nbest record: %w", err)
	}

	raw, ok := fields[fieldTranslations]
	if !ok {
		return nil, ErrNoTranslations
	}
	rec := &Record{}
	if err := json.Unmarshal(raw, &rec.Translations); err != nil {
		return nil, fmt.Errorf("decoding translations: %w", err)
	}
	delete(fields, fieldTranslations)

	if raw, ok := fields[fieldScores]; ok {
		if err := json.Unmarshal(raw, &rec.Scores); err != nil {
			return nil, fmt.Errorf("decoding scores: %w", err)
		}
		rec.hasScores = true
		delete(fields, fieldScores)
	}
	if raw, ok := fields[fieldText]; ok {
		if err := json.Unmarshal(raw, &rec.Text); err != nil {
			return nil, fmt.Errorf("decoding text: %w", err)
		}
		rec.hasText = true
		delete(fields, fieldText)
	}
	if len(fields) > 0 {
		rec.extra = fields
	}
	return rec, nil
}

// HasScores reports whether the record carried a scores field.
func (r *Record) HasScores() bool { return r.hasScores }

// HasText reports whether the record carried a text field.
func (r *Record) HasText() bool { return r.hasText }

// Permute returns a copy of the record with every parallel field
// reordered by perm: output position j takes the input element perm[j].
// Scalar fields and arrays whose length differs from the translation
// count pass through unchanged. The receiver is not modified.
func (r *Record) Permute(perm []int) (*Record, error) {
	n := len(r.Translations)
	if len(perm) != n {
		return nil, fmt.Errorf("permutation has %d entries for %d hypotheses", len(perm), n)
	}

	out := &Record{
		Translations: make([]string, n),
		Text:         r.Text,
		hasScores:    r.hasScores,
		hasText:      r.hasText,
	}
	for j, i := range perm {
		out.Translations[j] = r.Translations[i]
	}
	if len(r.Scores) == n {
		out.Scores = make([][]float64, n)
		for j, i := range perm {
			out.Scores[j] = r.Scores[i]
		}
	} else {
		out.Scores = r.Scores
	}
	if r.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			out.extra[k] = permuteRaw(v, perm, n)
		}
	}
	return out, nil
}

// permuteRaw reorders a raw JSON array of length n by perm. Anything
// that is not such an array is returned untouched.
func permuteRaw(raw json.RawMessage, perm []int, n int) json.RawMessage {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil || len(elems) != n {
		return raw
	}
	out := make([]json.RawMessage, n)
	for j, i := range perm {
		out[j] = elems[i]
	}
	b, err := json.Marshal(out)
	if err != nil {
		return raw
	}
	return b
}

// AttachScores records the sentence-level scores a reranking pass
// produced, in ranked order. On output they replace the scores field,
// with the best one rendered under score.
func (r *Record) AttachScores(scores []float64) {
	r.attached = scores
}

// MarshalJSON renders the record with lexicographically ordered keys,
// so identical records serialize to identical bytes.
func (r *Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.extra)+4)
	for k, v := range r.extra {
		fields[k] = v
	}

	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		fields[key] = b
		return nil
	}

	translations := r.Translations
	if translations == nil {
		translations = []string{}
	}
	if err := put(fieldTranslations, translations); err != nil {
		return nil, err
	}
	switch {
	case r.attached != nil:
		if err := put(fieldScores, r.attached); err != nil {
			return nil, err
		}
		if len(r.attached) > 0 {
			if err := put(fieldBestScore, r.attached[0]); err != nil {
				return nil, err
			}
		}
	case r.hasScores:
		if err := put(fieldScores, r.Scores); err != nil {
			return nil, err
		}
	}
	if r.hasText {
		if err := put(fieldText, r.Text); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}
