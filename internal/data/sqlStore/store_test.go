package sqlStore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(fmt.Sprintf("%sfile:%s?mode=memory&cache=shared", sqlitePrefix, uuid.NewString()))
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createDoc(t *testing.T, s *Store, sessionId string) commonModels.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), commonModels.Document{
		SessionId:  sessionId,
		Filename:   "report.pdf",
		FileSize:   2048,
		ChunkCount: 7,
		FilePath:   "uploads/job-report.pdf",
	})
	require.NoError(t, err)
	return doc
}

func TestCreateAndGetDocument(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created := createDoc(t, s, "s1")
	assert.NotEmpty(t, created.Id)
	assert.Equal(t, commonModels.DocumentActive, created.Status)

	got, err := s.GetDocument(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, created.Id, got.Id)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, 7, got.ChunkCount)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, "uploads/job-report.pdf", got.FilePath)
}

func TestCreateDocument_DuplicateSession(t *testing.T) {
	s := setupStore(t)
	createDoc(t, s, "s1")

	_, err := s.CreateDocument(context.Background(), commonModels.Document{SessionId: "s1", Filename: "other.pdf"})
	assert.ErrorIs(t, err, ragErrors.ErrSessionExists)
}

func TestGetDocument_NotInitialized(t *testing.T) {
	s := setupStore(t)
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
}

func TestListDocuments_NewestFirst(t *testing.T) {
	s := setupStore(t)
	createDoc(t, s, "first")
	createDoc(t, s, "second")
	createDoc(t, s, "third")

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "third", docs[0].SessionId)
	assert.Equal(t, "second", docs[1].SessionId)
	assert.Equal(t, "first", docs[2].SessionId)
}

func TestAppendMessage_RequiresDocument(t *testing.T) {
	s := setupStore(t)
	err := s.AppendMessage(context.Background(), "nobody", commonModels.RoleUser, "hi", nil, 1)
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	s := setupStore(t)
	createDoc(t, s, "s1")
	err := s.AppendMessage(context.Background(), "s1", commonModels.Role("system"), "hi", nil, 1)
	assert.Error(t, err)
}

func TestHistory_OrderAndWindow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createDoc(t, s, "s1")

	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleUser, "q1", nil, 2))
	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleAssistant, "a1", []string{"Page 1, Chunk 0"}, 3))
	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleUser, "q2", nil, 2))
	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleAssistant, "a2", nil, 3))

	full, err := s.GetFullHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, full, 4)
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents(full))
	assert.Equal(t, []string{"Page 1, Chunk 0"}, full[1].Sources)
	assert.Nil(t, full[0].Sources)
	assert.Equal(t, "s1", full[0].SessionId)

	recent, err := s.GetRecent(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "a2"}, contents(recent))

	recent, err = s.GetRecent(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, contents(recent))

	recent, err = s.GetRecent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 4)
}

func TestHistory_SameTimestampKeepsInsertOrder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createDoc(t, s, "s1")
	frozen := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleUser, "q", nil, 1))
	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleAssistant, "a", nil, 1))

	recent, err := s.GetRecent(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"q", "a"}, contents(recent))
}

func TestHistory_NoConversationYet(t *testing.T) {
	s := setupStore(t)
	createDoc(t, s, "s1")

	full, err := s.GetFullHistory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, full)

	_, err = s.GetFullHistory(context.Background(), "missing")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
}

func TestHistory_SessionsAreIsolated(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createDoc(t, s, "a")
	createDoc(t, s, "b")

	require.NoError(t, s.AppendMessage(ctx, "a", commonModels.RoleUser, "for a", nil, 1))
	require.NoError(t, s.AppendMessage(ctx, "b", commonModels.RoleUser, "for b", nil, 1))

	hist, err := s.GetFullHistory(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"for a"}, contents(hist))
}

func TestRecordTokenUsage(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordTokenUsage(ctx, commonModels.TokenUsage{SessionId: "s1", Model: "m", InputTokens: 10, OutputTokens: 5}))
	usage, err := s.TokenUsage(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 15, usage[0].TotalTokens)
	assert.Equal(t, "m", usage[0].Model)
}

func TestDeleteSessionRecords(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createDoc(t, s, "s1")
	createDoc(t, s, "keep")

	require.NoError(t, s.AppendMessage(ctx, "s1", commonModels.RoleUser, "q", nil, 1))
	require.NoError(t, s.AppendMessage(ctx, "keep", commonModels.RoleUser, "kept", nil, 1))
	require.NoError(t, s.RecordTokenUsage(ctx, commonModels.TokenUsage{SessionId: "s1", Model: "m", InputTokens: 1}))

	require.NoError(t, s.DeleteSessionRecords(ctx, "s1"))

	_, err := s.GetDocument(ctx, "s1")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)

	var messages, conversations int64
	require.NoError(t, s.db.Model(&messageRow{}).Count(&messages).Error)
	require.NoError(t, s.db.Model(&conversationRow{}).Count(&conversations).Error)
	assert.Equal(t, int64(1), messages)
	assert.Equal(t, int64(1), conversations)

	usage, err := s.TokenUsage(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, usage)

	kept, err := s.GetFullHistory(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, contents(kept))

	//the session id is free again
	createDoc(t, s, "s1")
}

func TestDeleteSessionRecords_UnknownSession(t *testing.T) {
	s := setupStore(t)
	assert.NoError(t, s.DeleteSessionRecords(context.Background(), "ghost"))
}

// failDeletesOn makes every delete against table fail inside the store's gorm instance.
func failDeletesOn(t *testing.T, s *Store, table string) {
	t.Helper()
	err := s.db.Callback().Delete().Before("gorm:delete").Register("test:fail_"+table, func(db *gorm.DB) {
		if db.Statement.Table == table {
			_ = db.AddError(errors.New("boom"))
		}
	})
	require.NoError(t, err)
}

func seedSession(t *testing.T, s *Store, sessionId string) {
	t.Helper()
	ctx := context.Background()
	createDoc(t, s, sessionId)
	require.NoError(t, s.AppendMessage(ctx, sessionId, commonModels.RoleUser, "q", nil, 1))
	require.NoError(t, s.RecordTokenUsage(ctx, commonModels.TokenUsage{SessionId: sessionId, Model: "m", InputTokens: 1}))
}

func TestDeleteSessionRecords_DocumentFailureRollsBack(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedSession(t, s, "s1")
	failDeletesOn(t, s, "documents")

	err := s.DeleteSessionRecords(ctx, "s1")
	assert.EqualError(t, err, "boom")

	_, err = s.GetDocument(ctx, "s1")
	assert.NoError(t, err)
	history, err := s.GetFullHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	usage, err := s.TokenUsage(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, usage, 1)
	var conversations int64
	require.NoError(t, s.db.Model(&conversationRow{}).Count(&conversations).Error)
	assert.Equal(t, int64(1), conversations)
}

func TestDeleteSessionRecords_FailedStepIsSkipped(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedSession(t, s, "s1")
	failDeletesOn(t, s, "token_usage")

	require.NoError(t, s.DeleteSessionRecords(ctx, "s1"))

	_, err := s.GetDocument(ctx, "s1")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
	var messages, conversations int64
	require.NoError(t, s.db.Model(&messageRow{}).Count(&messages).Error)
	require.NoError(t, s.db.Model(&conversationRow{}).Count(&conversations).Error)
	assert.Zero(t, messages)
	assert.Zero(t, conversations)

	//only the failed step's rows survive
	usage, err := s.TokenUsage(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, usage, 1)
}

func TestPendingDocumentLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	pending, err := s.CreateDocument(ctx, commonModels.Document{SessionId: "s1", Filename: "a.pdf", Status: commonModels.DocumentPending})
	require.NoError(t, err)
	assert.Equal(t, commonModels.DocumentPending, pending.Status)

	_, err = s.GetDocument(ctx, "s1")
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
	_, err = s.CreateDocument(ctx, commonModels.Document{SessionId: "s1", Filename: "b.pdf"})
	assert.ErrorIs(t, err, ragErrors.ErrSessionExists)

	active, err := s.ActivateDocument(ctx, "s1", 5)
	require.NoError(t, err)
	assert.Equal(t, commonModels.DocumentActive, active.Status)
	assert.Equal(t, 5, active.ChunkCount)
	assert.Equal(t, pending.Id, active.Id)

	_, err = s.ActivateDocument(ctx, "s1", 5)
	assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)

	//release only touches pending documents
	require.NoError(t, s.ReleaseDocument(ctx, "s1"))
	_, err = s.GetDocument(ctx, "s1")
	assert.NoError(t, err)
}

func TestReleaseAndDeletePendingDocument(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, release := range []func() error{
		func() error { return s.ReleaseDocument(ctx, "s1") },
		func() error { return s.DeleteSessionRecords(ctx, "s1") },
	} {
		_, err := s.CreateDocument(ctx, commonModels.Document{SessionId: "s1", Status: commonModels.DocumentPending})
		require.NoError(t, err)
		require.NoError(t, release())

		_, err = s.ActivateDocument(ctx, "s1", 1)
		assert.ErrorIs(t, err, ragErrors.ErrNotInitialized)
	}
}

func contents(msgs []commonModels.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}
