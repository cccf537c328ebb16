package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"google.golang.org/genai"
)

const providerName = "gemini"

var logger = logger_i.NewLogger("llm_gemini")

type llmClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

// New returns the configured model with the fallback model behind it. Both share one genai client.
func New(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, ragErrors.NewProviderError(providerName, "init", errors.New("missing GEMINI_API_KEY"))
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, ragErrors.NewProviderError(providerName, "init", err)
	}
	logger.Info("Gemini client created", "model", cfg.Model, "fallback", cfg.FallbackModel)

	primary := &llmClient{client: c, modelName: cfg.Model, temperature: cfg.Temperature}
	var secondary llm.Provider
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		secondary = &llmClient{client: c, modelName: cfg.FallbackModel, temperature: cfg.Temperature}
	}
	return llm.NewFallbackProvider(primary, secondary), nil
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	log := logger.FromContext(ctx).With("model", c.modelName)

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: config.ModelContext}},
		},
		Temperature: genai.Ptr(c.temperature),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(llm.BuildPrompt(req)), contentConfig)
	if err != nil {
		log.Error("Error generating content", "error", err)
		return llm.Generation{}, ragErrors.NewProviderError(providerName, "generate", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		log.Error("Empty response from model")
		return llm.Generation{}, ragErrors.NewProviderError(providerName, "generate", errors.New("empty response"))
	}
	return llm.Generation{Text: text, Model: c.modelName}, nil
}
