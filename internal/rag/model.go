package rag

import (
	"context"
)

// Metadata is the part of an index entry's metadata the pipeline reads.
// Other provider metadata fields are ignored.
type Metadata struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// Match is one nearest-neighbour result, in provider rank order.
type Match struct {
	ID       string   `json:"id"`
	Score    float32  `json:"score"` // higher is more relevant
	Metadata Metadata `json:"metadata"`
}

// Record is an entry written to the vector index during ingestion.
type Record struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// VectorIndex defines the nearest-neighbour index used for retrieval.
// Implementations must be safe for use by a single request at a time and
// normalize every provider response shape into []Match.
type VectorIndex interface {
	// Query returns up to topK matches for vector, metadata included.
	// An empty result is not an error.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Upsert writes records, replacing entries with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Close releases resources and closes connections
	Close() error
}

// IndexOptions provides configuration for profile indexing
type IndexOptions struct {
	// BatchSize determines how many chunks to embed at once
	BatchSize int

	// Progress, when set, is called after each upserted batch
	Progress func(written, total int)
}
