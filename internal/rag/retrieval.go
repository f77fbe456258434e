package rag

import (
	"context"
	"errors"
	"fmt"
)

// Top-K bounds applied before any index request.
const (
	DefaultTopK = 3
	MaxTopK     = 50
)

// ErrRetrievalFailed marks vector index transport or response failures.
var ErrRetrievalFailed = errors.New("vector retrieval failed")

// ClampTopK maps a caller-supplied K to a value safe to send to the index:
// non-positive values become DefaultTopK and large ones are capped at MaxTopK.
func ClampTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// Retriever provides nearest-neighbour retrieval over a VectorIndex.
type Retriever struct {
	index VectorIndex
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(index VectorIndex) (*Retriever, error) {
	if index == nil {
		return nil, fmt.Errorf("vector index cannot be nil")
	}

	return &Retriever{index: index}, nil
}

// Retrieve returns up to k matches for vector in provider rank order.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", ErrRetrievalFailed)
	}

	matches, err := r.index.Query(ctx, vector, ClampTopK(k))
	if err != nil {
		if errors.Is(err, ErrRetrievalFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	if matches == nil {
		matches = []Match{}
	}

	return matches, nil
}

// RetrieveContextForQuery embeds query and retrieves its nearest neighbours.
func RetrieveContextForQuery(
	ctx context.Context,
	embedder Embedder,
	retriever *Retriever,
	query string,
	topK int,
) ([]Match, error) {
	vector, err := EmbedQuery(ctx, embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return retriever.Retrieve(ctx, vector, topK)
}
