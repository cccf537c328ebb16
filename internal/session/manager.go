package session

import (
	"context"
	"errors"
	"os"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var logger = logger_i.NewLogger("Session Lifecycle")

// Partitions removes the vectors of one session.
type Partitions interface {
	DeleteSession(ctx context.Context, sessionId string) error
}

// HistoryReader serves the read-only history endpoint.
type HistoryReader interface {
	GetFullHistory(ctx context.Context, sessionId string) ([]commonModels.Message, error)
}

// Manager creates sessions on upload and tears down their whole footprint on delete:
// vector partition, durable records and the uploaded file.
type Manager struct {
	docs       commonModels.DocumentStore
	history    HistoryReader
	partitions Partitions
}

func NewManager(docs commonModels.DocumentStore, history HistoryReader, partitions Partitions) *Manager {
	return &Manager{docs: docs, history: history, partitions: partitions}
}

// Active reports whether the session already owns an active document.
func (m *Manager) Active(ctx context.Context, sessionId string) (bool, error) {
	_, err := m.docs.GetDocument(ctx, sessionId)
	if errors.Is(err, ragErrors.ErrNotInitialized) {
		return false, nil
	}
	return err == nil, err
}

// Create records a new document. It fails with ErrSessionExists when the session is taken.
func (m *Manager) Create(ctx context.Context, doc commonModels.Document) (commonModels.Document, error) {
	return m.docs.CreateDocument(ctx, doc)
}

// Reserve takes the session id for an upload before anything is indexed. The document
// stays invisible to queries until Activate.
func (m *Manager) Reserve(ctx context.Context, doc commonModels.Document) (commonModels.Document, error) {
	doc.Status = commonModels.DocumentPending
	return m.docs.CreateDocument(ctx, doc)
}

func (m *Manager) Activate(ctx context.Context, sessionId string, chunkCount int) (commonModels.Document, error) {
	return m.docs.ActivateDocument(ctx, sessionId, chunkCount)
}

// Release gives back a reservation whose upload failed.
func (m *Manager) Release(ctx context.Context, sessionId string) error {
	return m.docs.ReleaseDocument(ctx, sessionId)
}

func (m *Manager) Get(ctx context.Context, sessionId string) (commonModels.Document, error) {
	return m.docs.GetDocument(ctx, sessionId)
}

func (m *Manager) List(ctx context.Context) ([]commonModels.Document, error) {
	return m.docs.ListDocuments(ctx)
}

func (m *Manager) History(ctx context.Context, sessionId string) ([]commonModels.Message, error) {
	return m.history.GetFullHistory(ctx, sessionId)
}

// Destroy removes everything the session owns. The vector partition and the file are
// best effort: failures are logged and the rest continues. The durable records go in
// one transaction; if that fails the error is returned and the file is left in place
// so the surviving document record still points at it. Destroying an unknown session
// succeeds.
func (m *Manager) Destroy(ctx context.Context, sessionId string) error {
	log := logger.FromContext(ctx).With("sessionId", sessionId)

	doc, err := m.docs.GetDocument(ctx, sessionId)
	if err != nil && !errors.Is(err, ragErrors.ErrNotInitialized) {
		log.Warn("Error looking up document before delete", "error", err)
	}

	if err := m.partitions.DeleteSession(ctx, sessionId); err != nil {
		log.Error("Error deleting vector partition", "error", err)
	}

	if err := m.docs.DeleteSessionRecords(ctx, sessionId); err != nil {
		log.Error("Error deleting session records", "error", err)
		return err
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("Error removing uploaded file", "path", doc.FilePath, "error", err)
		}
	}

	log.Info("Session cleared")
	return nil
}
