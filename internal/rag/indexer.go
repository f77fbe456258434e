package rag

import (
	"context"
	"fmt"
)

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize: 16, // Batch size for embedding API calls
	}
}

// IndexChunks embeds profile chunks and upserts them into the vector index.
// This function:
// 1. Embeds chunk contents in batches
// 2. Pairs each vector with its chunk's title and content
// 3. Upserts each batch so a failure leaves earlier batches in place
//
// It returns the number of records written.
func IndexChunks(
	ctx context.Context,
	chunks []Chunk,
	embedder Embedder,
	index VectorIndex,
	opts IndexOptions,
) (int, error) {
	if len(chunks) == 0 {
		return 0, ErrEmptyProfile
	}

	if embedder == nil {
		return 0, fmt.Errorf("embedder cannot be nil")
	}

	if index == nil {
		return 0, fmt.Errorf("vector index cannot be nil")
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	written := 0
	for batchStart := 0; batchStart < len(chunks); batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}

		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		embeddingRecords, err := embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", batchStart, err)
		}
		if len(embeddingRecords) != len(batch) {
			return written, fmt.Errorf("%w: expected %d vectors for batch starting at %d, got %d",
				ErrEmbeddingFailed, len(batch), batchStart, len(embeddingRecords))
		}

		records := make([]Record, len(batch))
		for _, rec := range embeddingRecords {
			if rec.Index < 0 || rec.Index >= len(batch) {
				return written, fmt.Errorf("%w: vector index %d out of range", ErrEmbeddingFailed, rec.Index)
			}
			chunk := batch[rec.Index]
			records[rec.Index] = Record{
				ID:     chunk.ID,
				Vector: rec.Embedding,
				Metadata: Metadata{
					Title:   chunk.Title,
					Content: chunk.Content,
				},
			}
		}

		if err := index.Upsert(ctx, records); err != nil {
			return written, fmt.Errorf("failed to upsert batch starting at %d: %w", batchStart, err)
		}

		written += len(records)
		if opts.Progress != nil {
			opts.Progress(written, len(chunks))
		}
	}

	return written, nil
}
