// Package embeddings turns text into vectors for the knowledge base.
package embeddings

import "context"

// EmbeddingModel contains metadata about the embedding model
type EmbeddingModel struct {
	Name       string
	Dimensions int
}

// Provider generates embeddings. Queries and ingested chunks must go through
// the same provider so that their vectors are comparable.
type Provider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateBatchEmbeddings embeds texts in order; result i belongs to texts[i].
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	GetModel() EmbeddingModel
}
