package embedding

import "context"

// Embedder turns text into fixed dimension vectors.
// GetEmbedding is used for questions, BatchEmbedding for document chunks; the two use
// the provider's query and document task types where the provider distinguishes them.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
	Dimension() int32
}
