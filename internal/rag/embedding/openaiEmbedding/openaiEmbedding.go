package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag/embedding"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerName = "openai-embedding"

var logger = logger_i.NewLogger("openai_embedding")

type client struct {
	api       openai.Client
	model     string
	dimension int32
}

// New builds the OpenAI embedder. Extra request options (base url, http client) are
// appended after the api key.
func New(cfg config.EmbeddingConfig, opts ...option.RequestOption) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, ragErrors.NewProviderError(providerName, "init", errors.New("missing OPENAI_API_KEY"))
	}
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, opts...)
	logger.Info("OpenAI Embedding client created", "model", cfg.Model, "dimension", cfg.Dimension)
	return &client{
		api:       openai.NewClient(opts...),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

func (c *client) Dimension() int32 {
	return c.dimension
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	res, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimension)),
	})
	if err != nil {
		logger.FromContext(ctx).Error("Error getting Embeddings from OpenAI", "error", err, "count", len(chunks))
		return nil, ragErrors.NewProviderError(providerName, "embed", err)
	}
	if len(res.Data) != len(chunks) {
		return nil, ragErrors.NewProviderError(providerName, "embed", fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(res.Data)))
	}

	//the api may return the items out of order, Index is authoritative
	out := make([][]float32, len(chunks))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(out) || len(d.Embedding) != int(c.dimension) {
			return nil, ragErrors.NewProviderError(providerName, "embed", fmt.Errorf("malformed embedding at index %d", d.Index))
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
