package ingest

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/metrics"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var logger = logger_i.NewLogger("Document Ingestion")

// Indexer writes a session's chunks into its vector partition and can drop them again.
type Indexer interface {
	Upsert(ctx context.Context, sessionId string, chunks []commonModels.Chunk) error
	DeleteSession(ctx context.Context, sessionId string) error
}

// Registrar owns the durable document record of a session. Reserve must fail with
// ragErrors.ErrSessionExists when the session already holds a document.
type Registrar interface {
	Reserve(ctx context.Context, doc commonModels.Document) (commonModels.Document, error)
	Activate(ctx context.Context, sessionId string, chunkCount int) (commonModels.Document, error)
	Release(ctx context.Context, sessionId string) error
}

type Pipeline struct {
	indexer   Indexer
	registrar Registrar
	chunkSize int
	overlap   int
}

func NewPipeline(indexer Indexer, registrar Registrar, chunkSize int, overlap int) *Pipeline {
	return &Pipeline{
		indexer:   indexer,
		registrar: registrar,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// ProcessDocumentIngestion runs reserve -> extract -> chunk -> index -> activate for the file
// referenced by the job. The session is reserved first so two uploads can never write into
// the same partition. Any later failure drops the partition and the reservation, and the
// uploaded file is removed; on success the file is kept.
func (p *Pipeline) ProcessDocumentIngestion(ctx context.Context, job jobModel.Job) (jobModel.Job, error) {
	log := logger.FromContext(ctx).With("sessionId", job.SessionId, "jobId", job.Id)

	docName := job.JobPayload.IngestFileName
	docPath := job.JobPayload.IngestURL
	log.Debug("Processing document", "filename", docName, "path", docPath)

	job.CurrentStep = jobModel.IngestInit
	if _, err := p.registrar.Reserve(ctx, commonModels.Document{
		SessionId: job.SessionId,
		Filename:  docName,
		FileSize:  job.JobPayload.FileSize,
		FilePath:  docPath,
	}); err != nil {
		return p.fail(job, log, err)
	}

	job.CurrentStep = jobModel.IngestChunking
	chunks, err := p.chunk(docPath)
	if err != nil {
		p.release(ctx, job.SessionId, log, false)
		return p.fail(job, log, err)
	}
	log.Debug("Processing document", "Number of chunks", len(chunks))

	job.CurrentStep = jobModel.IngestIndexing
	if err = p.index(ctx, job.SessionId, chunks); err != nil {
		//a failed batch may have left earlier batches behind
		p.release(ctx, job.SessionId, log, true)
		return p.fail(job, log, err)
	}

	job.CurrentStep = jobModel.IngestRecording
	doc, err := p.registrar.Activate(ctx, job.SessionId, len(chunks))
	if err != nil {
		p.release(ctx, job.SessionId, log, true)
		return p.fail(job, log, err)
	}

	log.Info("Document ingested", "documentId", doc.Id, "chunks", doc.ChunkCount)
	job.JobPayload.ChunkCount = doc.ChunkCount
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job, nil
}

// release undoes a reservation, dropping the vectors first when some may have been written.
// It runs detached from ctx so a cancelled upload still cleans up.
func (p *Pipeline) release(ctx context.Context, sessionId string, log *logger_i.Logger, indexed bool) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ExternalCallTimeout)
	defer cancel()

	if indexed {
		if err := p.indexer.DeleteSession(cleanupCtx, sessionId); err != nil {
			log.Error("Error dropping partition of failed upload", "error", err)
		}
	}
	if err := p.registrar.Release(cleanupCtx, sessionId); err != nil {
		log.Error("Error releasing session of failed upload", "error", err)
	}
}

func (p *Pipeline) chunk(path string) ([]commonModels.Chunk, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("chunking", time.Since(start)) }()

	return PrepareChunks(path, p.chunkSize, p.overlap)
}

func (p *Pipeline) index(ctx context.Context, sessionId string, chunks []commonModels.Chunk) error {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("indexing", time.Since(start)) }()

	if err := p.indexer.Upsert(ctx, sessionId, chunks); err != nil {
		return err
	}
	metrics.AddIndexedChunks(len(chunks))
	return nil
}

func (p *Pipeline) fail(job jobModel.Job, log *logger_i.Logger, err error) (jobModel.Job, error) {
	log.Error("Error processing document", "step", job.CurrentStep, "error", err)
	if path := job.JobPayload.IngestURL; path != "" {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("Error removing file", "error", rmErr)
		}
	}
	job.Status = jobModel.JobStatusError
	return job, err
}
