package rag_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/PdfQA/internal/data/sqlStore"
	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/rag"
	"github.com/akolanti/PdfQA/internal/rag/chunker"
	"github.com/akolanti/PdfQA/internal/rag/ingest"
	"github.com/akolanti/PdfQA/internal/rag/llm"
	"github.com/akolanti/PdfQA/internal/rag/namespace"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/PdfQA/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keywords = []string{"alpha", "bravo", "charlie"}

// keywordEmbedder puts one dimension per keyword so retrieval is predictable.
type keywordEmbedder struct{}

func (keywordEmbedder) embed(text string) []float32 {
	v := make([]float32, len(keywords)+1)
	lower := strings.ToLower(text)
	for i, k := range keywords {
		v[i] = float32(strings.Count(lower, k))
	}
	v[len(keywords)] = 0.01
	return v
}

func (e keywordEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e keywordEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (keywordEmbedder) Dimension() int32 { return int32(len(keywords) + 1) }

type pipeline struct {
	svc      rag.Service
	sessions *session.Manager
	store    *sqlStore.Store
	vectors  *namespace.Manager
	index    *memoryDB.Store
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()
	ctx := context.Background()

	store, err := sqlStore.Open(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	opts := namespace.DefaultOptions()
	opts.IndexName = "e2e"
	opts.Dimension = len(keywords) + 1
	opts.PollInterval = time.Millisecond
	index := memoryDB.New()
	vectors := namespace.NewManager(index, keywordEmbedder{}, opts)
	require.NoError(t, vectors.EnsureIndex(ctx))

	sessions := session.NewManager(store, store, vectors)
	ingester := ingest.NewPipeline(vectors, sessions, 500, 50)
	provider := &MockLLM{OnGenerate: func(ctx context.Context, req llm.Request) (llm.Generation, error) {
		return llm.Generation{Text: "answer from " + fmt.Sprint(len(req.Context)) + " chunks", Model: "e2e-model"}, nil
	}}

	svc := rag.NewService(store, vectors, keywordEmbedder{}, provider, ingester, rag.DefaultOptions())
	return pipeline{svc: svc, sessions: sessions, store: store, vectors: vectors, index: index}
}

// threePages is 1200 characters of text over three marked pages; each page names one keyword.
func threePages() string {
	var sb strings.Builder
	for page := 1; page <= 3; page++ {
		if page > 1 {
			sb.WriteString(chunker.PageMarker(page))
		}
		for line := 0; line < 4; line++ {
			prefix := fmt.Sprintf("%s page %d line %d ", keywords[page-1], page, line)
			sb.WriteString(prefix + strings.Repeat("x", 99-len(prefix)) + "\n")
		}
	}
	return sb.String()
}

func TestPipeline_UploadAskDelete(t *testing.T) {
	p := newPipeline(t)
	ctx := traceCtx()

	path := filepath.Join(t.TempDir(), "job-1-doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(threePages()), 0o644))

	uploaded := p.svc.IngestDocument(ctx, jobModel.Job{
		Id:        "job-1",
		SessionId: "e2e",
		JobType:   jobModel.JobTypeIngest,
		JobPayload: jobModel.JobPayload{
			IngestFileName: "doc.txt",
			IngestURL:      path,
			FileSize:       1200,
		},
	})
	require.Equal(t, jobModel.JobStatusComplete, uploaded.Status, uploaded.Error.Message)
	assert.Equal(t, 3, uploaded.JobPayload.ChunkCount)

	doc, err := p.sessions.Get(ctx, "e2e")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, "doc.txt", doc.Filename)

	answered := p.svc.ProcessRequest(ctx, queryJob("e2e", "tell me about bravo"))
	require.Equal(t, jobModel.JobStatusComplete, answered.Status, answered.Error.Message)
	assert.NotEmpty(t, answered.JobPayload.Answer)
	assert.Contains(t, answered.JobPayload.Sources, "Page 2, Chunk 1")
	assert.Equal(t, "e2e-model", answered.JobPayload.Model)

	history, err := p.sessions.History(ctx, "e2e")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "tell me about bravo", history[0].Content)
	assert.Equal(t, answered.JobPayload.Sources, history[1].Sources)

	usage, err := p.store.TokenUsage(ctx, "e2e")
	require.NoError(t, err)
	assert.Len(t, usage, 1)

	require.NoError(t, p.sessions.Destroy(ctx, "e2e"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	again := p.svc.ProcessRequest(ctx, queryJob("e2e", "tell me about bravo"))
	assert.Equal(t, jobModel.JobStatusError, again.Status)
	assert.Equal(t, http.StatusBadRequest, again.Error.Code)
}

func TestPipeline_SessionsDoNotLeak(t *testing.T) {
	p := newPipeline(t)
	ctx := traceCtx()

	dir := t.TempDir()
	for _, id := range []string{"left", "right"} {
		path := filepath.Join(dir, id+".txt")
		text := id + " alpha alpha alpha"
		if id == "right" {
			text = id + " charlie"
		}
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
		j := p.svc.IngestDocument(ctx, jobModel.Job{
			Id:         id,
			SessionId:  id,
			JobPayload: jobModel.JobPayload{IngestFileName: id + ".txt", IngestURL: path},
		})
		require.Equal(t, jobModel.JobStatusComplete, j.Status, j.Error.Message)
	}

	ans, err := p.svc.Answer(ctx, "right", "alpha?")
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1, Chunk 0"}, ans.Sources)
	assert.Equal(t, "answer from 1 chunks", ans.Answer)
}

func TestPipeline_DuplicateUploadRejected(t *testing.T) {
	p := newPipeline(t)
	ctx := traceCtx()
	dir := t.TempDir()

	first := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(first, []byte("alpha"), 0o644))
	j := p.svc.IngestDocument(ctx, jobModel.Job{Id: "1", SessionId: "dup", JobPayload: jobModel.JobPayload{IngestFileName: "a.txt", IngestURL: first}})
	require.Equal(t, jobModel.JobStatusComplete, j.Status)

	second := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(second, []byte("bravo"), 0o644))
	j = p.svc.IngestDocument(ctx, jobModel.Job{Id: "2", SessionId: "dup", JobPayload: jobModel.JobPayload{IngestFileName: "b.txt", IngestURL: second}})
	assert.Equal(t, jobModel.JobStatusError, j.Status)
	assert.Equal(t, http.StatusConflict, j.Error.Code)

	_, err := os.Stat(first)
	assert.NoError(t, err, "the original upload stays")
	_, err = os.Stat(second)
	assert.True(t, os.IsNotExist(err))
}

// hookIndexer runs afterUpsert once the chunks are in the index.
type hookIndexer struct {
	*namespace.Manager
	afterUpsert func(ctx context.Context)
}

func (h hookIndexer) Upsert(ctx context.Context, sessionId string, chunks []commonModels.Chunk) error {
	if err := h.Manager.Upsert(ctx, sessionId, chunks); err != nil {
		return err
	}
	h.afterUpsert(ctx)
	return nil
}

func TestPipeline_SessionReservedWhileIndexing(t *testing.T) {
	p := newPipeline(t)
	ctx := traceCtx()
	dir := t.TempDir()

	path := filepath.Join(dir, "job-1-doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(threePages()), 0o644))

	var competing error
	var visible error
	indexer := hookIndexer{Manager: p.vectors, afterUpsert: func(ctx context.Context) {
		_, competing = p.sessions.Reserve(ctx, commonModels.Document{SessionId: "busy", Filename: "other.txt"})
		_, visible = p.store.GetDocument(ctx, "busy")
	}}
	job, err := ingest.NewPipeline(indexer, p.sessions, 500, 50).ProcessDocumentIngestion(ctx, jobModel.Job{
		Id:         "job-1",
		SessionId:  "busy",
		JobPayload: jobModel.JobPayload{IngestFileName: "doc.txt", IngestURL: path},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, job.JobPayload.ChunkCount)
	assert.ErrorIs(t, competing, ragErrors.ErrSessionExists)
	assert.ErrorIs(t, visible, ragErrors.ErrNotInitialized, "a pending document is not queryable")

	doc, err := p.store.GetDocument(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, commonModels.DocumentActive, doc.Status)
	assert.Equal(t, 3, p.index.Count("e2e", "busy"))
}

func TestPipeline_DeletedWhileIndexingLeavesNothing(t *testing.T) {
	p := newPipeline(t)
	ctx := traceCtx()

	path := filepath.Join(t.TempDir(), "job-1-doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(threePages()), 0o644))

	indexer := hookIndexer{Manager: p.vectors, afterUpsert: func(ctx context.Context) {
		require.NoError(t, p.store.DeleteSessionRecords(ctx, "gone"))
	}}
	_, err := ingest.NewPipeline(indexer, p.sessions, 500, 50).ProcessDocumentIngestion(ctx, jobModel.Job{
		Id:         "job-1",
		SessionId:  "gone",
		JobPayload: jobModel.JobPayload{IngestFileName: "doc.txt", IngestURL: path},
	})

	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
	assert.Zero(t, p.index.Count("e2e", "gone"))
	_, err = p.store.GetDocument(ctx, "gone")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	//the id is free for the next upload
	_, err = p.sessions.Reserve(ctx, commonModels.Document{SessionId: "gone"})
	assert.NoError(t, err)
}
