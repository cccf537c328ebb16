package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag/embedding"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	providerName = "gemini-embedding"

	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

var logger = logger_i.NewLogger("google_embedding")

// retryBackoff is a var so tests do not wait on it.
var retryBackoff = 5 * time.Second

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

// New builds the Gemini embedder. The genai client holds no connection, so there is
// nothing to close; the caller owns the lifetime through ctx of each call.
func New(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, ragErrors.NewProviderError(providerName, "init", errors.New("missing GEMINI_API_KEY"))
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, ragErrors.NewProviderError(providerName, "init", err)
	}
	logger.Info("Google Embedding client created", "model", cfg.Model, "dimension", cfg.Dimension)
	return newWithClient(c, cfg.Model, cfg.Dimension), nil
}

func newWithClient(c *genai.Client, model string, dimension int32) *client {
	return &client{genAi: c, model: model, dimension: dimension}
}

func (c *client) Dimension() int32 {
	return c.dimension
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	return c.embed(ctx, chunks, taskDocument)
}

func (c *client) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	log := logger.FromContext(ctx)

	res, err := c.doCall(ctx, texts, task)
	if err != nil && isRateLimited(err) {
		log.Warn("Rate limit hit, retrying once", "backoff", retryBackoff)
		select {
		case <-ctx.Done():
			return nil, ragErrors.NewProviderError(providerName, "embed", ctx.Err())
		case <-time.After(retryBackoff):
		}
		res, err = c.doCall(ctx, texts, task)
	}
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err, "count", len(texts))
		return nil, ragErrors.NewProviderError(providerName, "embed", err)
	}

	return c.vectors(res, len(texts))
}

func (c *client) doCall(ctx context.Context, texts []string, task string) (*genai.EmbedContentResponse, error) {
	dimension := c.dimension
	return c.genAi.Models.EmbedContent(ctx, c.model, getContent(texts), &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
		TaskType:             task,
	})
}

func (c *client) vectors(res *genai.EmbedContentResponse, want int) ([][]float32, error) {
	if res == nil || len(res.Embeddings) != want {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, ragErrors.NewProviderError(providerName, "embed", fmt.Errorf("expected %d embeddings, got %d", want, got))
	}
	out := make([][]float32, 0, want)
	for _, e := range res.Embeddings {
		if e == nil || len(e.Values) != int(c.dimension) {
			return nil, ragErrors.NewProviderError(providerName, "embed", fmt.Errorf("embedding dimension mismatch, want %d", c.dimension))
		}
		out = append(out, e.Values)
	}
	return out, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// isRateLimited recognises quota errors from both the gRPC and the REST transport.
func isRateLimited(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
