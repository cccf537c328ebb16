package namespace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/metrics"
	"github.com/akolanti/PdfQA/internal/rag/embedding"
	"github.com/akolanti/PdfQA/internal/rag/vectorDB"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

var logger = logger_i.NewLogger("Namespace Manager")

var errEmptySession = errors.New("session id is empty")

type Options struct {
	IndexName    string
	Dimension    int
	Metric       string
	CallTimeout  time.Duration
	ReadyTimeout time.Duration
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

func DefaultOptions() Options {
	return Options{
		IndexName:    config.DefaultIndexName,
		Dimension:    int(config.EmbeddingOutputDimensionality),
		Metric:       config.EmbeddingMetric,
		CallTimeout:  config.ExternalCallTimeout,
		ReadyTimeout: config.IndexReadyTimeout,
		PollInterval: config.IndexReadyPollInterval,
		BatchSize:    config.EmbeddingBatchSize,
		Concurrency:  config.EmbeddingBatchConcurrency,
	}
}

// Manager maps a session id onto a namespace of one shared index.
type Manager struct {
	provider vectorDB.IndexProvider
	embedder embedding.Embedder
	opts     Options
}

func NewManager(provider vectorDB.IndexProvider, embedder embedding.Embedder, opts Options) *Manager {
	d := DefaultOptions()
	if opts.IndexName == "" {
		opts.IndexName = d.IndexName
	}
	if opts.Dimension <= 0 {
		opts.Dimension = d.Dimension
	}
	if opts.Metric == "" {
		opts.Metric = d.Metric
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = d.CallTimeout
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = d.ReadyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = d.PollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = d.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = d.Concurrency
	}
	return &Manager{provider: provider, embedder: embedder, opts: opts}
}

func (m *Manager) IndexName() string { return m.opts.IndexName }

// EnsureIndex creates the shared index when missing and recreates it when its dimension
// does not match the embedder. It blocks until the provider reports the index ready.
func (m *Manager) EnsureIndex(ctx context.Context) error {
	log := logger.FromContext(ctx).With("index", m.opts.IndexName)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_admin", time.Since(start)) }()

	info, err := m.describe(ctx)
	switch {
	case errors.Is(err, vectorDB.ErrIndexNotFound):
		log.Info("Creating vector index", "dimension", m.opts.Dimension, "metric", m.opts.Metric)
		if err := m.create(ctx); err != nil {
			return err
		}
	case err != nil:
		return err
	case info.Dimension != m.opts.Dimension:
		log.Warn("Vector index has the wrong dimension, recreating", "have", info.Dimension, "want", m.opts.Dimension)
		if err := m.call(ctx, "delete_index", func(ctx context.Context) error {
			return m.provider.DeleteIndex(ctx, m.opts.IndexName)
		}); err != nil {
			return err
		}
		if err := m.waitFor(ctx, "index deletion", func(info vectorDB.IndexInfo, err error) (bool, error) {
			if errors.Is(err, vectorDB.ErrIndexNotFound) {
				return true, nil
			}
			return false, err
		}); err != nil {
			return err
		}
		if err := m.create(ctx); err != nil {
			return err
		}
	case info.Ready:
		return nil
	}

	return m.waitFor(ctx, "index readiness", func(info vectorDB.IndexInfo, err error) (bool, error) {
		if errors.Is(err, vectorDB.ErrIndexNotFound) {
			return false, nil
		}
		return err == nil && info.Ready, err
	})
}

func (m *Manager) create(ctx context.Context) error {
	return m.call(ctx, "create_index", func(ctx context.Context) error {
		return m.provider.CreateIndex(ctx, m.opts.IndexName, m.opts.Dimension, m.opts.Metric)
	})
}

func (m *Manager) describe(ctx context.Context) (vectorDB.IndexInfo, error) {
	var info vectorDB.IndexInfo
	err := m.call(ctx, "describe_index", func(ctx context.Context) error {
		var err error
		info, err = m.provider.DescribeIndex(ctx, m.opts.IndexName)
		return err
	})
	if errors.Is(err, vectorDB.ErrIndexNotFound) {
		return info, vectorDB.ErrIndexNotFound
	}
	return info, err
}

// waitFor polls DescribeIndex until done reports true, done fails, or the ready timeout passes.
func (m *Manager) waitFor(ctx context.Context, what string, done func(vectorDB.IndexInfo, error) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	for {
		ok, err := done(m.describe(ctx))
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ragErrors.NewProviderError(m.provider.Name(), "wait", fmt.Errorf("%s: %w", what, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// Upsert embeds the chunks in batches and writes them into the session's namespace.
// Batches run concurrently; the first failure cancels the rest and is returned.
func (m *Manager) Upsert(ctx context.Context, sessionId string, chunks []commonModels.Chunk) error {
	if sessionId == "" {
		return errEmptySession
	}
	log := logger.FromContext(ctx).With("sessionId", sessionId)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for i := 0; i < len(chunks); i += m.opts.BatchSize {
		batch := chunks[i:min(i+m.opts.BatchSize, len(chunks))]
		g.Go(func() error {
			return m.upsertBatch(gctx, sessionId, batch)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("Upsert failed", "error", err, "chunks", len(chunks))
		return err
	}
	log.Debug("Upserted chunks", "chunks", len(chunks))
	return nil
}

func (m *Manager) upsertBatch(ctx context.Context, sessionId string, batch []commonModels.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	var vectors [][]float32
	err := m.timed(ctx, "embedding", func(ctx context.Context) error {
		var err error
		vectors, err = m.embedder.BatchEmbedding(ctx, texts)
		return err
	})
	if err != nil {
		return ragErrors.NewProviderError("embedding", "batch_embed", err)
	}
	if len(vectors) != len(batch) {
		return ragErrors.NewProviderError("embedding", "batch_embed", fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
	}

	items := make([]vectorDB.Item, len(batch))
	for i, c := range batch {
		items[i] = vectorDB.Item{
			Id:     vectorDB.VectorId(sessionId, c.Index),
			Values: vectors[i],
			Metadata: vectorDB.ChunkMetadata{
				Content:    c.Content,
				Page:       c.Page,
				ChunkIndex: c.Index,
				Source:     c.SourceLabel(),
				SessionId:  sessionId,
			},
		}
	}
	return m.call(ctx, "upsert", func(ctx context.Context) error {
		return m.provider.Upsert(ctx, m.opts.IndexName, sessionId, items)
	})
}

// Query returns the k nearest chunks of the session's namespace, best first.
func (m *Manager) Query(ctx context.Context, sessionId string, vector []float32, k int) ([]vectorDB.Match, error) {
	if sessionId == "" {
		return nil, errEmptySession
	}
	var matches []vectorDB.Match
	err := m.call(ctx, "query", func(ctx context.Context) error {
		var err error
		matches, err = m.provider.Query(ctx, m.opts.IndexName, sessionId, vector, k)
		return err
	})
	return matches, err
}

// DeleteSession removes the session's namespace. Deleting an empty namespace succeeds.
func (m *Manager) DeleteSession(ctx context.Context, sessionId string) error {
	if sessionId == "" {
		return errEmptySession
	}
	return m.call(ctx, "delete_namespace", func(ctx context.Context) error {
		return m.provider.DeleteNamespace(ctx, m.opts.IndexName, sessionId)
	})
}

// call runs one provider operation under the per call timeout and reports failures as ProviderError.
// ErrIndexNotFound is passed through untouched so callers can branch on it.
func (m *Manager) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := m.timed(ctx, "vector_"+op, fn)
	if err == nil || errors.Is(err, vectorDB.ErrIndexNotFound) {
		return err
	}
	return ragErrors.NewProviderError(m.provider.Name(), op, err)
}

func (m *Manager) timed(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics(label, time.Since(start)) }()
	return fn(callCtx)
}
