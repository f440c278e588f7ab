package rag

import "strings"

// Decision is the outcome of the augmentation check.
type Decision struct {
	NeedsSearch bool
	Query       string
}

// Classify maps the decider's raw output onto a Decision. The model is
// instructed to answer "No" when the retrieved context suffices; anything
// else is taken verbatim as the web search query. Matching is
// whitespace-trimmed and case-insensitive, and an empty output degrades to
// sufficient rather than triggering a search.
func Classify(raw string) Decision {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "", "no", "no.":
		return Decision{NeedsSearch: false}
	}
	return Decision{NeedsSearch: true, Query: trimmed}
}
