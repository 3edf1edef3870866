package rerank

// EventSink observes conditions the Reranker resolves by policy rather
// than by failing. Implementations must be safe for concurrent use
// when the Reranker is shared.
type EventSink interface {
	// NothingToRerank fires when a record passes through unchanged
	// because it holds fewer than two hypotheses.
	NothingToRerank(hypotheses int)
}

// NopSink is an EventSink that discards every event.
type NopSink struct{}

// NothingToRerank implements EventSink.
func (NopSink) NothingToRerank(int) {}
