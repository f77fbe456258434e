package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
)

const (
	milvusVectorField = "embedding"
	milvusSearchEf    = 64
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	APIKey         string // Optional token for managed deployments
	CollectionName string // Name of the collection

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
}

// DefaultMilvusConfig returns defaults for a local Milvus deployment
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "twin_profile",
		M:              16,
		EfConstruction: 256,
	}
}

// MilvusStore implements VectorIndex using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus. The collection is created lazily on
// the first Upsert, once the vector dimension is known.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.M <= 0 {
		config.M = 16
	}
	if config.EfConstruction <= 0 {
		config.EfConstruction = 256
	}

	c, err := client.NewClient(ctx, client.Config{
		Address: config.Address,
		APIKey:  config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &MilvusStore{
		client: c,
		config: config,
	}, nil
}

// ensureCollection creates the collection with schema if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context, dimension int) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		AutoID:         false,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     milvusVectorField,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dimension),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}

	if err := m.client.CreateIndex(ctx, m.config.CollectionName, milvusVectorField, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Upsert writes records, creating the collection on first use.
func (m *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	dimension := len(records[0].Vector)
	if dimension == 0 {
		return ErrInvalidDimension
	}

	if err := m.ensureCollection(ctx, dimension); err != nil {
		return err
	}

	ids := make([]string, len(records))
	titles := make([]string, len(records))
	contents := make([]string, len(records))
	embeddings := make([][]float32, len(records))

	for i, record := range records {
		if len(record.Vector) != dimension {
			return fmt.Errorf("%w: record %s has %d, expected %d", ErrInvalidDimension, record.ID, len(record.Vector), dimension)
		}
		ids[i] = record.ID
		titles[i] = record.Metadata.Title
		contents[i] = record.Metadata.Content
		embeddings[i] = record.Vector
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector(milvusVectorField, dimension, embeddings),
	}

	if _, err := m.client.Upsert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	return nil
}

// Query performs top-K similarity search
func (m *MilvusStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	sp, err := entity.NewIndexHNSWSearchParam(milvusSearchEf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create search params: %v", ErrRetrievalFailed, err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",  // no filter
		[]string{"title", "content"},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	if len(results) == 0 {
		return []Match{}, nil
	}

	result := results[0]
	matches := make([]Match, 0, result.ResultCount)

	for i := 0; i < result.ResultCount; i++ {
		match := Match{Score: result.Scores[i]}

		if result.IDs != nil {
			if id, err := result.IDs.Get(i); err == nil {
				match.ID = fmt.Sprint(id)
			}
		}

		for _, field := range result.Fields {
			col, ok := field.(*entity.ColumnVarChar)
			if !ok {
				continue
			}
			switch field.Name() {
			case "title":
				match.Metadata.Title = col.Data()[i]
			case "content":
				match.Metadata.Content = col.Data()[i]
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
