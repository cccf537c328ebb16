package openaiLLM

import (
	"context"
	"errors"
	"strings"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerName = "openai"

var logger = logger_i.NewLogger("llm_openai")

type llmClient struct {
	api         *openai.Client
	modelName   string
	temperature float64
}

// New returns the configured chat model with the fallback model behind it.
func New(cfg config.LLMConfig, opts ...option.RequestOption) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, ragErrors.NewProviderError(providerName, "init", errors.New("missing OPENAI_API_KEY"))
	}
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}, opts...)
	api := openai.NewClient(opts...)
	logger.Info("OpenAI client created", "model", cfg.Model, "fallback", cfg.FallbackModel)

	primary := &llmClient{api: &api, modelName: cfg.Model, temperature: float64(cfg.Temperature)}
	var secondary llm.Provider
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		secondary = &llmClient{api: &api, modelName: cfg.FallbackModel, temperature: float64(cfg.Temperature)}
	}
	return llm.NewFallbackProvider(primary, secondary), nil
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	log := logger.FromContext(ctx).With("model", c.modelName)

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(config.ModelContext),
			openai.UserMessage(llm.BuildPrompt(req)),
		},
		Model:       openai.ChatModel(c.modelName),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		log.Error("Error generating completion", "error", err)
		return llm.Generation{}, ragErrors.NewProviderError(providerName, "generate", err)
	}
	if len(completion.Choices) == 0 {
		return llm.Generation{}, ragErrors.NewProviderError(providerName, "generate", errors.New("no choices returned"))
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return llm.Generation{}, ragErrors.NewProviderError(providerName, "generate", errors.New("empty response"))
	}
	return llm.Generation{Text: text, Model: c.modelName}, nil
}
