package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Yates-Labs/twin/internal/rag"
)

// LoadChunks reads a profile document and splits it into chunks.
func LoadChunks(path string) ([]rag.Chunk, error) {
	profile, err := rag.LoadProfile(path)
	if err != nil {
		return nil, err
	}

	chunks := rag.ChunkProfile(profile)
	if len(chunks) == 0 {
		return nil, rag.ErrEmptyProfile
	}

	return chunks, nil
}

// Ingest embeds chunks and writes them to the vector index, replacing any
// entries with the same IDs. It returns the number of records written.
func (p *Pipeline) Ingest(ctx context.Context, chunks []rag.Chunk, opts rag.IndexOptions) (int, error) {
	// Check for context cancellation
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled before ingestion: %w", err)
	}

	if len(chunks) == 0 {
		return 0, wrapStage(StageValidate, rag.ErrEmptyProfile)
	}

	settings := p.settings()
	if err := settings.RequireRetrieval(); err != nil {
		return 0, wrapStage(StageConfig, err)
	}

	embedder, err := p.providers.Embedder(settings.Embedding)
	if err != nil {
		return 0, wrapStage(StageEmbed, err)
	}

	index, err := p.providers.Index(ctx, settings.Vector)
	if err != nil {
		return 0, wrapStage(StageIndex, err)
	}
	defer index.Close()

	p.logger.Info("indexing profile chunks",
		zap.Int("chunks", len(chunks)),
		zap.String("backend", settings.Vector.Backend),
		zap.String("model", embedder.GetModel()),
	)

	written, err := rag.IndexChunks(ctx, chunks, embedder, index, opts)
	if err != nil {
		return written, wrapStage(StageIndex, err)
	}

	p.logger.Info("indexed profile chunks", zap.Int("written", written))
	return written, nil
}
