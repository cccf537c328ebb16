package rag_test

import (
	"context"
	"sync"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
)

// MockStore implements commonModels.SessionContextStore and records every write.
type MockStore struct {
	mu                 sync.Mutex
	Documents          map[string]commonModels.Document
	Messages           []commonModels.Message
	Usage              []commonModels.TokenUsage
	OnAppendMessage    func(ctx context.Context, role commonModels.Role) error
	OnGetRecent        func(ctx context.Context, sessionId string, limit int) ([]commonModels.Message, error)
	OnRecordTokenUsage func(ctx context.Context, usage commonModels.TokenUsage) error
}

func NewMockStore(sessionIds ...string) *MockStore {
	m := &MockStore{Documents: map[string]commonModels.Document{}}
	for _, id := range sessionIds {
		m.Documents[id] = commonModels.Document{Id: "doc-" + id, SessionId: id, Status: commonModels.DocumentActive}
	}
	return m
}

func (m *MockStore) GetDocument(ctx context.Context, sessionId string) (commonModels.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Documents[sessionId]
	if !ok {
		return commonModels.Document{}, ragErrors.ErrNotInitialized
	}
	return doc, nil
}

func (m *MockStore) AppendMessage(ctx context.Context, sessionId string, role commonModels.Role, content string, sources []string, tokenCount int) error {
	if m.OnAppendMessage != nil {
		if err := m.OnAppendMessage(ctx, role); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, commonModels.Message{
		Id:         uint64(len(m.Messages) + 1),
		SessionId:  sessionId,
		Role:       role,
		Content:    content,
		Sources:    sources,
		TokenCount: tokenCount,
	})
	return nil
}

func (m *MockStore) GetRecent(ctx context.Context, sessionId string, limit int) ([]commonModels.Message, error) {
	if m.OnGetRecent != nil {
		return m.OnGetRecent(ctx, sessionId, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var own []commonModels.Message
	for _, msg := range m.Messages {
		if msg.SessionId == sessionId {
			own = append(own, msg)
		}
	}
	if len(own) > limit {
		own = own[len(own)-limit:]
	}
	return own, nil
}

func (m *MockStore) GetFullHistory(ctx context.Context, sessionId string) ([]commonModels.Message, error) {
	return m.GetRecent(ctx, sessionId, len(m.Messages))
}

func (m *MockStore) RecordTokenUsage(ctx context.Context, usage commonModels.TokenUsage) error {
	if m.OnRecordTokenUsage != nil {
		if err := m.OnRecordTokenUsage(ctx, usage); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Usage = append(m.Usage, usage)
	return nil
}

// MockRetriever implements rag.Retriever
type MockRetriever struct {
	OnQuery func(ctx context.Context, sessionId string, vector []float32, k int) ([]vectorDB.Match, error)
}

func (m *MockRetriever) Query(ctx context.Context, sessionId string, vector []float32, k int) ([]vectorDB.Match, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, sessionId, vector, k)
	}
	return []vectorDB.Match{
		{Id: "1", Score: 0.9, Metadata: vectorDB.ChunkMetadata{Content: "default context", Page: 1, ChunkIndex: 0, Source: "Page 1, Chunk 0"}},
	}, nil
}

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	// Return dummy vectors matching chunk size
	return make([][]float32, len(chunks)), nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1}, nil
}

func (m *MockEmbedder) Dimension() int32 { return 1 }

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, req llm.Request) (llm.Generation, error)
}

func (m *MockLLM) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, req)
	}
	return llm.Generation{Text: "mocked llm response", Model: "mock-model"}, nil
}

// MockIngester implements rag.Ingester
type MockIngester struct {
	OnProcess func(ctx context.Context, job jobModel.Job) (jobModel.Job, error)
}

func (m *MockIngester) ProcessDocumentIngestion(ctx context.Context, job jobModel.Job) (jobModel.Job, error) {
	if m.OnProcess != nil {
		return m.OnProcess(ctx, job)
	}
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job, nil
}
