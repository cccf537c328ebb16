package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDocs struct {
	docs      map[string]commonModels.Document
	deleteErr error
	calls     []string
}

func newMockDocs() *mockDocs {
	return &mockDocs{docs: map[string]commonModels.Document{}}
}

func (m *mockDocs) CreateDocument(ctx context.Context, doc commonModels.Document) (commonModels.Document, error) {
	if _, ok := m.docs[doc.SessionId]; ok {
		return commonModels.Document{}, ragErrors.ErrSessionExists
	}
	doc.Id = "doc-" + doc.SessionId
	m.docs[doc.SessionId] = doc
	return doc, nil
}

func (m *mockDocs) GetDocument(ctx context.Context, sessionId string) (commonModels.Document, error) {
	doc, ok := m.docs[sessionId]
	if !ok || doc.Status == commonModels.DocumentPending {
		return commonModels.Document{}, ragErrors.ErrNotInitialized
	}
	return doc, nil
}

func (m *mockDocs) ActivateDocument(ctx context.Context, sessionId string, chunkCount int) (commonModels.Document, error) {
	doc, ok := m.docs[sessionId]
	if !ok || doc.Status != commonModels.DocumentPending {
		return commonModels.Document{}, ragErrors.ErrNotInitialized
	}
	doc.Status = commonModels.DocumentActive
	doc.ChunkCount = chunkCount
	m.docs[sessionId] = doc
	return doc, nil
}

func (m *mockDocs) ReleaseDocument(ctx context.Context, sessionId string) error {
	if doc, ok := m.docs[sessionId]; ok && doc.Status == commonModels.DocumentPending {
		delete(m.docs, sessionId)
	}
	return nil
}

func (m *mockDocs) ListDocuments(ctx context.Context) ([]commonModels.Document, error) {
	out := make([]commonModels.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDocs) DeleteSessionRecords(ctx context.Context, sessionId string) error {
	m.calls = append(m.calls, "records")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.docs, sessionId)
	return nil
}

func (m *mockDocs) GetFullHistory(ctx context.Context, sessionId string) ([]commonModels.Message, error) {
	if _, ok := m.docs[sessionId]; !ok {
		return nil, ragErrors.ErrNotInitialized
	}
	return []commonModels.Message{{Role: commonModels.RoleUser, Content: "hi"}}, nil
}

type mockPartitions struct {
	err   error
	owner *mockDocs
}

func (p *mockPartitions) DeleteSession(ctx context.Context, sessionId string) error {
	p.owner.calls = append(p.owner.calls, "vectors")
	return p.err
}

func setup(t *testing.T) (*Manager, *mockDocs, *mockPartitions, string) {
	t.Helper()
	docs := newMockDocs()
	parts := &mockPartitions{owner: docs}
	path := filepath.Join(t.TempDir(), "job-report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	return NewManager(docs, docs, parts), docs, parts, path
}

func TestActiveAndCreate(t *testing.T) {
	m, _, _, path := setup(t)
	ctx := context.Background()

	active, err := m.Active(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, active)

	_, err = m.Create(ctx, commonModels.Document{SessionId: "s1", Filename: "report.pdf", FilePath: path})
	require.NoError(t, err)

	active, err = m.Active(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = m.Create(ctx, commonModels.Document{SessionId: "s1"})
	assert.ErrorIs(t, err, ragErrors.ErrSessionExists)
}

func TestReserveActivateRelease(t *testing.T) {
	m, _, _, path := setup(t)
	ctx := context.Background()

	_, err := m.Reserve(ctx, commonModels.Document{SessionId: "s1", FilePath: path})
	require.NoError(t, err)

	//a reservation holds the id but is not a document yet
	active, err := m.Active(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, active)
	_, err = m.Reserve(ctx, commonModels.Document{SessionId: "s1"})
	assert.ErrorIs(t, err, ragErrors.ErrSessionExists)

	doc, err := m.Activate(ctx, "s1", 4)
	require.NoError(t, err)
	assert.Equal(t, commonModels.DocumentActive, doc.Status)
	assert.Equal(t, 4, doc.ChunkCount)

	//releasing an active document is a no-op
	require.NoError(t, m.Release(ctx, "s1"))
	active, err = m.Active(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = m.Reserve(ctx, commonModels.Document{SessionId: "s2"})
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "s2"))
	_, err = m.Reserve(ctx, commonModels.Document{SessionId: "s2"})
	assert.NoError(t, err)
}

func TestDestroy_RemovesEverything(t *testing.T) {
	m, docs, _, path := setup(t)
	ctx := context.Background()
	_, err := m.Create(ctx, commonModels.Document{SessionId: "s1", FilePath: path})
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, "s1"))

	assert.Equal(t, []string{"vectors", "records"}, docs.calls)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = m.History(ctx, "s1")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
}

func TestDestroy_VectorFailureDoesNotAbort(t *testing.T) {
	m, docs, parts, path := setup(t)
	ctx := context.Background()
	_, err := m.Create(ctx, commonModels.Document{SessionId: "s1", FilePath: path})
	require.NoError(t, err)
	parts.err = errors.New("index unreachable")

	require.NoError(t, m.Destroy(ctx, "s1"))

	_, ok := docs.docs["s1"]
	assert.False(t, ok)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDestroy_RecordFailureKeepsFile(t *testing.T) {
	m, docs, _, path := setup(t)
	ctx := context.Background()
	_, err := m.Create(ctx, commonModels.Document{SessionId: "s1", FilePath: path})
	require.NoError(t, err)
	docs.deleteErr = errors.New("tx aborted")

	err = m.Destroy(ctx, "s1")
	assert.Error(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
	active, err := m.Active(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestDestroy_UnknownSessionIsIdempotent(t *testing.T) {
	m, docs, _, _ := setup(t)
	ctx := context.Background()

	assert.NoError(t, m.Destroy(ctx, "ghost"))
	assert.NoError(t, m.Destroy(ctx, "ghost"))
	assert.Equal(t, []string{"vectors", "records", "vectors", "records"}, docs.calls)
}

func TestDestroy_MissingFileIsIgnored(t *testing.T) {
	m, _, _, path := setup(t)
	ctx := context.Background()
	_, err := m.Create(ctx, commonModels.Document{SessionId: "s1", FilePath: path})
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	assert.NoError(t, m.Destroy(ctx, "s1"))
}
