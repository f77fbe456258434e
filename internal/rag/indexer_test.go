package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func testChunks(n int) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			ID:      fmt.Sprintf("chunk_%d", i),
			Title:   "Experience",
			Content: fmt.Sprintf("entry %d", i),
		}
	}
	return chunks
}

func TestIndexChunks_Batches(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{}

	written, err := IndexChunks(context.Background(), testChunks(5), embedder, index, IndexOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}

	if written != 5 {
		t.Errorf("written = %d, want 5", written)
	}
	if embedder.calls != 3 {
		t.Errorf("embed calls = %d, want 3", embedder.calls)
	}
	if len(index.upserted) != 3 {
		t.Fatalf("upsert calls = %d, want 3", len(index.upserted))
	}

	last := index.upserted[2]
	if len(last) != 1 || last[0].ID != "chunk_4" {
		t.Errorf("unexpected last batch: %+v", last)
	}
	if last[0].Metadata.Title != "Experience" || last[0].Metadata.Content != "entry 4" {
		t.Errorf("metadata not carried over: %+v", last[0].Metadata)
	}
}

func TestIndexChunks_ReportsProgress(t *testing.T) {
	var reported []int
	opts := IndexOptions{
		BatchSize: 2,
		Progress: func(written, total int) {
			if total != 5 {
				t.Errorf("total = %d, want 5", total)
			}
			reported = append(reported, written)
		},
	}

	if _, err := IndexChunks(context.Background(), testChunks(5), &mockEmbedder{}, &mockIndex{}, opts); err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}

	want := []int{2, 4, 5}
	if len(reported) != len(want) {
		t.Fatalf("progress calls = %v, want %v", reported, want)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, reported[i], want[i])
		}
	}
}

func TestIndexChunks_DefaultBatchSize(t *testing.T) {
	embedder := &mockEmbedder{}

	if _, err := IndexChunks(context.Background(), testChunks(3), embedder, &mockIndex{}, IndexOptions{}); err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}
	if embedder.calls != 1 {
		t.Errorf("embed calls = %d, want 1", embedder.calls)
	}
}

func TestIndexChunks_Empty(t *testing.T) {
	_, err := IndexChunks(context.Background(), nil, &mockEmbedder{}, &mockIndex{}, DefaultIndexOptions())
	if !errors.Is(err, ErrEmptyProfile) {
		t.Fatalf("expected ErrEmptyProfile, got %v", err)
	}
}

func TestIndexChunks_UpsertFailureKeepsCount(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{upsertErr: errors.New("quota exceeded")}

	written, err := IndexChunks(context.Background(), testChunks(2), embedder, index, DefaultIndexOptions())
	if err == nil {
		t.Fatal("expected error")
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
}

func TestIndexChunks_VectorCountMismatch(t *testing.T) {
	embedder := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
		return []EmbeddingRecord{{Embedding: []float32{1}, Index: 0}}, nil
	}}

	_, err := IndexChunks(context.Background(), testChunks(2), embedder, &mockIndex{}, DefaultIndexOptions())
	if !errors.Is(err, ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
}
