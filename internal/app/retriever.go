package app

import (
	"context"
	"fmt"
	"strings"

	"converge/internal/model"
)

const DefaultTopK = 5

// Retriever answers "which stored chunks are most similar to this query"
// within a single user's collection. The query is embedded with the same
// model as ingestion, so the distances are comparable.
type Retriever struct {
	embedder Embedder
	store    DocumentStore
	topK     int
}

func NewRetriever(embedder Embedder, store DocumentStore, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
	}
}

// Retrieve returns up to k chunks for the user, most similar first, each
// annotated with its source file name. k <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, email, query string, k int) ([]model.RetrievedChunk, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	query = strings.TrimSpace(query)
	if email == "" || query == "" {
		return nil, ErrInvalidInput
	}
	if k <= 0 {
		k = r.topK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return r.store.SearchChunks(ctx, email, vector, k)
}
