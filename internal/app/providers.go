package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/rag/embedding"
	"github.com/akolanti/PdfQA/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/PdfQA/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/internal/rag/llm/gemini"
	"github.com/akolanti/PdfQA/internal/rag/llm/openaiLLM"
	"github.com/akolanti/PdfQA/internal/rag/namespace"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB/pineconeDB"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var logger = logger_i.NewLogger("App")

func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini", "google":
		return googleEmbedding.New(ctx, cfg)
	case "openai":
		return openaiEmbedding.New(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func NewLLM(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini", "google":
		return gemini.New(ctx, cfg)
	case "openai":
		return openaiLLM.New(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewIndexProvider returns the configured vector index and a func releasing its connections.
func NewIndexProvider(cfg config.VectorConfig) (vectorDB.IndexProvider, func(), error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "pinecone":
		client, err := pineconeDB.New(pineconeDB.Config{
			APIKey:  cfg.PineconeAPIKey,
			BaseURL: cfg.PineconeBaseURL,
			Cloud:   cfg.PineconeCloud,
			Region:  cfg.PineconeRegion,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case "qdrant":
		holder, err := qdrantDB.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		return holder, func() {
			if err := holder.Close(); err != nil {
				logger.Warn("Error closing qdrant", "error", err)
			}
		}, nil
	case "memory":
		logger.Warn("Using the in-memory vector index, vectors are lost on restart")
		return memoryDB.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector provider %q", cfg.Provider)
	}
}

func NamespaceOptions(cfg *config.Config) namespace.Options {
	opts := namespace.DefaultOptions()
	opts.IndexName = cfg.Vector.IndexName
	opts.Dimension = int(cfg.Embedding.Dimension)
	opts.Metric = cfg.Vector.Metric
	opts.CallTimeout = cfg.RAG.CallTimeout
	opts.ReadyTimeout = cfg.Vector.ReadyTimeout
	return opts
}
