package rag

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/metrics"
	"github.com/akolanti/PdfQA/internal/rag/embedding"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

/*
Service is the only thing the worker and the MCP tools see.
The private service struct holds the store, retriever and provider handles;
they are injected by NewService so tests can swap any of them.
*/

// Service Worker will only call this service - it doesn't need to know the llm or the vector index
type Service interface {
	ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	Answer(ctx context.Context, sessionId string, question string) (commonModels.Answer, error)
}

// Retriever returns the nearest chunks of one session's partition.
type Retriever interface {
	Query(ctx context.Context, sessionId string, vector []float32, k int) ([]vectorDB.Match, error)
}

// Ingester turns an uploaded file into an indexed, recorded document.
type Ingester interface {
	ProcessDocumentIngestion(ctx context.Context, job jobModel.Job) (jobModel.Job, error)
}

type Options struct {
	HistoryWindow       int
	HistoryCharBudget   int
	TopK                int
	SourceLabelMaxChars int
	MaxSources          int
	TokenMultiplier     float64
	CallTimeout         time.Duration
	PersistenceTimeout  time.Duration
}

func OptionsFromConfig(c config.RAGConfig) Options {
	return Options{
		HistoryWindow:       c.HistoryWindow,
		HistoryCharBudget:   c.HistoryCharBudget,
		TopK:                c.TopK,
		SourceLabelMaxChars: c.SourceLabelMaxChars,
		MaxSources:          c.MaxSources,
		TokenMultiplier:     c.TokenMultiplier,
		CallTimeout:         c.CallTimeout,
		PersistenceTimeout:  config.PersistenceTimeout,
	}
}

func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().RAG)
}

type service struct {
	store       commonModels.SessionContextStore
	retriever   Retriever
	embedder    embedding.Embedder
	llmProvider llm.Provider
	ingester    Ingester
	opts        Options
	logger      *logger_i.Logger
}

// NewService constructor
func NewService(store commonModels.SessionContextStore, retriever Retriever, em embedding.Embedder, provider llm.Provider, ingester Ingester, opts Options) Service {
	d := DefaultOptions()
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	if opts.HistoryCharBudget <= 0 {
		opts.HistoryCharBudget = d.HistoryCharBudget
	}
	if opts.TopK <= 0 {
		opts.TopK = d.TopK
	}
	if opts.SourceLabelMaxChars <= 0 {
		opts.SourceLabelMaxChars = d.SourceLabelMaxChars
	}
	if opts.MaxSources <= 0 {
		opts.MaxSources = d.MaxSources
	}
	if opts.TokenMultiplier <= 0 {
		opts.TokenMultiplier = d.TokenMultiplier
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = d.CallTimeout
	}
	if opts.PersistenceTimeout <= 0 {
		opts.PersistenceTimeout = d.PersistenceTimeout
	}
	return &service{
		store:       store,
		retriever:   retriever,
		embedder:    em,
		llmProvider: provider,
		ingester:    ingester,
		opts:        opts,
		logger:      logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) ProcessRequest(ctx context.Context, jobt jobModel.Job) jobModel.Job {
	start := time.Now()
	ans, err := s.answer(ctx, &jobt, jobt.SessionId, jobt.JobPayload.Question)
	if err != nil {
		metrics.CaptureJobMetrics("error", time.Since(start))
		return s.jobError(ctx, jobt, err)
	}
	metrics.CaptureJobMetrics("complete", time.Since(start))
	return returnOutput(jobt, ans)
}

func (s *service) Answer(ctx context.Context, sessionId string, question string) (commonModels.Answer, error) {
	job := jobModel.Job{SessionId: sessionId, JobType: jobModel.JobTypeQuery}
	return s.answer(ctx, &job, sessionId, question)
}

// answer runs document check -> history -> embed -> retrieve -> generate -> persist.
// Nothing is written unless generation succeeded and the caller is still waiting.
func (s *service) answer(ctx context.Context, job *jobModel.Job, sessionId string, question string) (commonModels.Answer, error) {
	log := s.logger.FromContext(ctx).With("sessionId", sessionId, "jobId", job.Id)

	question = strings.TrimSpace(question)
	if question == "" {
		return commonModels.Answer{}, ragErrors.ErrEmptyQuestion
	}

	*job = logOutput(*job, jobModel.SessionCheck, log)
	if _, err := s.store.GetDocument(ctx, sessionId); err != nil {
		return commonModels.Answer{}, err
	}

	history, err := s.executeHistoryStep(ctx, log, job, sessionId)
	if err != nil {
		return commonModels.Answer{}, err
	}

	vector, err := s.executeEmbeddingStep(ctx, log, job, question)
	if err != nil {
		return commonModels.Answer{}, err
	}

	matches, err := s.executeVectorSearchStep(ctx, log, job, sessionId, vector)
	if err != nil {
		return commonModels.Answer{}, err
	}

	req := llm.Request{
		Question: question,
		Context:  matchTexts(matches),
		History:  history,
	}
	gen, err := s.executeLLMStep(ctx, log, job, req)
	if err != nil {
		return commonModels.Answer{}, err
	}
	if err := ctx.Err(); err != nil {
		//the caller is gone, the turn never happened
		return commonModels.Answer{}, err
	}

	ans := commonModels.Answer{
		Answer:  gen.Text,
		Sources: collectSources(matches, s.opts.SourceLabelMaxChars, s.opts.MaxSources),
		Model:   gen.Model,
	}

	usage := s.estimateUsage(sessionId, req, gen)
	metrics.CaptureTokenEstimate(usage.Model, usage.InputTokens, usage.OutputTokens)
	s.executePersistenceStep(ctx, log, job, sessionId, question, ans, usage)

	return ans, nil
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_ingestion", time.Since(start)) }()

	j, err := s.ingester.ProcessDocumentIngestion(ctx, job)
	if err != nil {
		return s.jobError(ctx, j, err)
	}
	return j
}
