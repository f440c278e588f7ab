package retrieval

import "context"

// Result is the flattened text returned by the knowledge base for a query.
type Result struct {
	Text string
}

// Retriever searches the legal corpus for context relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string) (Result, error)
}
