package rag

import (
	"context"
	"errors"
	"time"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/metrics"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

func returnOutput(job jobModel.Job, ans commonModels.Answer) jobModel.Job {
	job.JobPayload.Answer = ans.Answer
	job.JobPayload.Sources = ans.Sources
	job.JobPayload.Model = ans.Model
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(ctx context.Context, job jobModel.Job, err error) jobModel.Job {
	log := s.logger.FromContext(ctx).With("jobId", job.Id, "sessionId", job.SessionId)
	if errors.Is(err, context.Canceled) {
		log.Info("Job cancelled", "step", job.CurrentStep)
	} else {
		log.Error("Job failed", "step", job.CurrentStep, "error", err)
	}

	job.Error = jobModel.JobError{
		Code:    ragErrors.HTTPStatus(err),
		Message: ragErrors.UserMessage(err),
		Retry:   ragErrors.IsProviderError(err),
	}
	job.Status = jobModel.JobStatusError
	return job
}

func (s *service) executeHistoryStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, sessionId string) ([]commonModels.HistoryTurn, error) {
	*job = logOutput(*job, jobModel.HistoryCall, log)
	if s.opts.HistoryWindow == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("history", time.Since(start)) }()

	recent, err := s.store.GetRecent(ctx, sessionId, s.opts.HistoryWindow)
	if err != nil {
		return nil, err
	}
	return pairHistory(recent, s.opts.HistoryCharBudget), nil
}

func (s *service) executeEmbeddingStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, question string) ([]float32, error) {
	*job = logOutput(*job, jobModel.EmbeddingAPICall, log)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	vector, err := s.embedder.GetEmbedding(callCtx, question)
	if err != nil {
		return nil, providerError(ctx, "embedding", "embed", err)
	}
	return vector, nil
}

func (s *service) executeVectorSearchStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, sessionId string, vector []float32) ([]vectorDB.Match, error) {
	*job = logOutput(*job, jobModel.VectorDBCall, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	matches, err := s.retriever.Query(ctx, sessionId, vector, s.opts.TopK)
	if err != nil {
		return nil, providerError(ctx, "vector", "query", err)
	}
	return matches, nil
}

func (s *service) executeLLMStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, req llm.Request) (llm.Generation, error) {
	*job = logOutput(*job, jobModel.LLMCall, log)

	//every model the provider may fall back to gets a full call timeout
	budget := s.opts.CallTimeout * time.Duration(llm.Attempts(s.llmProvider))
	callCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	gen, err := s.llmProvider.Generate(callCtx, req)
	if err != nil {
		return llm.Generation{}, providerError(ctx, "llm", "generate", err)
	}
	if gen.Text == "" {
		return llm.Generation{}, ragErrors.NewProviderError("llm", "generate", errors.New("empty answer"))
	}
	return gen, nil
}

// executePersistenceStep writes the user message, the assistant message and the usage row in
// that order. It runs detached from the request context so a client leaving mid-write does not
// split the turn. Failures are logged as PersistenceWarning and never fail the answer.
func (s *service) executePersistenceStep(ctx context.Context, log *logger_i.Logger, job *jobModel.Job, sessionId string, question string, ans commonModels.Answer, usage commonModels.TokenUsage) {
	*job = logOutput(*job, jobModel.PersistenceCall, log)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistenceTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("persistence", time.Since(start)) }()

	steps := []struct {
		name string
		run  func() error
	}{
		{"user_message", func() error {
			return s.store.AppendMessage(writeCtx, sessionId, commonModels.RoleUser, question, nil, s.estimateTokens(question))
		}},
		{"assistant_message", func() error {
			return s.store.AppendMessage(writeCtx, sessionId, commonModels.RoleAssistant, ans.Answer, ans.Sources, usage.OutputTokens)
		}},
		{"token_usage", func() error {
			return s.store.RecordTokenUsage(writeCtx, usage)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			warning := &ragErrors.PersistenceWarning{Step: step.name, Err: err}
			metrics.IncrementPersistenceWarnings(step.name)
			log.Warn("Answer returned but not persisted, history continuity is broken", "error", warning)
			//a missing user message would leave the assistant reply unpaired
			return
		}
	}
}

// providerError keeps cancellation and domain errors as they are and wraps the rest.
func providerError(ctx context.Context, provider string, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, ragErrors.ErrNotInitialized) {
		return err
	}
	return ragErrors.NewProviderError(provider, op, err)
}
