package sqlStore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

var logger = logger_i.NewLogger("SQL Store")

// Store is the durable record of documents, conversations, messages and token usage.
// It implements both commonModels.SessionContextStore and commonModels.DocumentStore.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// gormWriter routes gorm's own log lines through the service logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.New(gormWriter{}, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}
}

// Open connects to postgres, or to sqlite when the url starts with sqlite://.
func Open(databaseURL string) (*Store, error) {
	var dialector gorm.Dialector
	path, isSqlite := strings.CutPrefix(databaseURL, sqlitePrefix)
	if isSqlite {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(databaseURL)
	}
	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if isSqlite {
		//sqlite has a single writer; one connection avoids "database table is locked" on shared cache
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(allModels()...)
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// -------------------- documents --------------------

// CreateDocument records a document, active unless doc.Status says pending. The unique
// session_id index makes the check atomic across concurrent uploads.
func (s *Store) CreateDocument(ctx context.Context, doc commonModels.Document) (commonModels.Document, error) {
	if doc.SessionId == "" {
		return commonModels.Document{}, errors.New("missing session_id")
	}
	status := commonModels.DocumentActive
	if doc.Status == commonModels.DocumentPending {
		status = commonModels.DocumentPending
	}
	row := documentRow{
		Id:         uuid.NewString(),
		SessionId:  doc.SessionId,
		Filename:   doc.Filename,
		FileSize:   doc.FileSize,
		ChunkCount: doc.ChunkCount,
		FilePath:   doc.FilePath,
		Status:     string(status),
		CreatedAt:  s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&documentRow{}).Where("session_id = ?", doc.SessionId).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ragErrors.ErrSessionExists
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return commonModels.Document{}, ragErrors.ErrSessionExists
	}
	if err != nil {
		return commonModels.Document{}, err
	}
	return row.toDomain(), nil
}

// ActivateDocument fails with ErrNotInitialized when there is no pending document, for
// example because the session was deleted while its upload was still indexing.
func (s *Store) ActivateDocument(ctx context.Context, sessionId string, chunkCount int) (commonModels.Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&documentRow{}).
			Where("session_id = ? AND status = ?", sessionId, string(commonModels.DocumentPending)).
			Updates(map[string]any{"status": string(commonModels.DocumentActive), "chunk_count": chunkCount})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ragErrors.ErrNotInitialized
		}
		var err error
		row, err = findDocument(tx, sessionId)
		return err
	})
	if err != nil {
		return commonModels.Document{}, err
	}
	return row.toDomain(), nil
}

// ReleaseDocument is a no-op for sessions without a pending document.
func (s *Store) ReleaseDocument(ctx context.Context, sessionId string) error {
	return s.db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionId, string(commonModels.DocumentPending)).
		Delete(&documentRow{}).Error
}

func (s *Store) GetDocument(ctx context.Context, sessionId string) (commonModels.Document, error) {
	row, err := findDocument(s.db.WithContext(ctx), sessionId)
	if err != nil {
		return commonModels.Document{}, err
	}
	return row.toDomain(), nil
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]commonModels.Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).Order("uploaded_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]commonModels.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// DeleteSessionRecords removes the session's messages, conversation, token usage and
// document in one transaction. The first three run under savepoints: their failure is
// logged and skipped. Failing to delete the document rolls everything back.
// A session without a document is not an error. A pending document is removed too, which
// makes the upload still indexing it fail and clean up after itself.
func (s *Store) DeleteSessionRecords(ctx context.Context, sessionId string) error {
	log := logger.FromContext(ctx).With("sessionId", sessionId)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, sessionId, commonModels.DocumentActive, commonModels.DocumentPending)
		if errors.Is(err, ragErrors.ErrNotInitialized) {
			doc = documentRow{}
		} else if err != nil {
			return err
		}

		var conversationIds []string
		if doc.Id != "" {
			if err := tx.Model(&conversationRow{}).Where("document_id = ?", doc.Id).Pluck("id", &conversationIds).Error; err != nil {
				return err
			}
		}

		steps := []struct {
			name string
			run  func(tx *gorm.DB) error
		}{
			{"messages", func(tx *gorm.DB) error {
				if len(conversationIds) == 0 {
					return nil
				}
				return tx.Where("chat_session_id IN ?", conversationIds).Delete(&messageRow{}).Error
			}},
			{"conversation", func(tx *gorm.DB) error {
				if len(conversationIds) == 0 {
					return nil
				}
				return tx.Where("id IN ?", conversationIds).Delete(&conversationRow{}).Error
			}},
			{"token_usage", func(tx *gorm.DB) error {
				return tx.Where("session_id = ?", sessionId).Delete(&tokenUsageRow{}).Error
			}},
		}
		for _, step := range steps {
			if err := tx.Transaction(step.run); err != nil {
				log.Error("Error deleting session records", "step", step.name, "error", err)
			}
		}

		if doc.Id == "" {
			return nil
		}
		if err := tx.Delete(&documentRow{}, "id = ?", doc.Id).Error; err != nil {
			log.Error("Error deleting document, rolling back", "error", err)
			return err
		}
		return nil
	})
}

// -------------------- conversation --------------------

// AppendMessage writes one message, creating the conversation on first use.
func (s *Store) AppendMessage(ctx context.Context, sessionId string, role commonModels.Role, content string, sources []string, tokenCount int) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	var sourcesJSON datatypes.JSON
	if sources != nil {
		raw, err := json.Marshal(sources)
		if err != nil {
			return err
		}
		sourcesJSON = raw
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := findDocument(tx, sessionId)
		if err != nil {
			return err
		}
		conv, err := s.findOrCreateConversation(tx, doc)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.Create(&messageRow{
			ChatSessionId: conv.Id,
			Role:          string(role),
			Content:       content,
			Sources:       sourcesJSON,
			TokenCount:    tokenCount,
			CreatedAt:     now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&conversationRow{}).Where("id = ?", conv.Id).Update("updated_at", now).Error
	})
}

// GetRecent returns the last limit messages in chronological order.
func (s *Store) GetRecent(ctx context.Context, sessionId string, limit int) ([]commonModels.Message, error) {
	if limit <= 0 {
		return []commonModels.Message{}, nil
	}
	rows, err := s.messages(ctx, sessionId, "created_at DESC, id DESC", limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toMessages(rows, sessionId), nil
}

// GetFullHistory returns every message of the session in chronological order.
func (s *Store) GetFullHistory(ctx context.Context, sessionId string) ([]commonModels.Message, error) {
	rows, err := s.messages(ctx, sessionId, "created_at ASC, id ASC", 0)
	if err != nil {
		return nil, err
	}
	return toMessages(rows, sessionId), nil
}

func (s *Store) RecordTokenUsage(ctx context.Context, usage commonModels.TokenUsage) error {
	createdAt := usage.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	return s.db.WithContext(ctx).Create(&tokenUsageRow{
		SessionId:    usage.SessionId,
		Model:        usage.Model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.InputTokens + usage.OutputTokens,
		CreatedAt:    createdAt,
	}).Error
}

// TokenUsage returns the audit rows of a session, oldest first.
func (s *Store) TokenUsage(ctx context.Context, sessionId string) ([]commonModels.TokenUsage, error) {
	var rows []tokenUsageRow
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionId).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]commonModels.TokenUsage, 0, len(rows))
	for _, r := range rows {
		out = append(out, commonModels.TokenUsage{
			SessionId:    r.SessionId,
			Model:        r.Model,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			TotalTokens:  r.TotalTokens,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

// -------------------- helpers --------------------

// findDocument looks up the session's document in one of statuses, active when none are given.
func findDocument(tx *gorm.DB, sessionId string, statuses ...commonModels.DocumentStatus) (documentRow, error) {
	if len(statuses) == 0 {
		statuses = []commonModels.DocumentStatus{commonModels.DocumentActive}
	}
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, string(st))
	}
	var row documentRow
	err := tx.Where("session_id = ? AND status IN ?", sessionId, names).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return documentRow{}, ragErrors.ErrNotInitialized
	}
	return row, err
}

func (s *Store) findOrCreateConversation(tx *gorm.DB, doc documentRow) (conversationRow, error) {
	var conv conversationRow
	err := tx.Where("document_id = ?", doc.Id).Order("created_at ASC").Take(&conv).Error
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return conversationRow{}, err
	}
	now := s.now()
	conv = conversationRow{
		Id:          uuid.NewString(),
		DocumentId:  doc.Id,
		SessionName: doc.Filename,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return conv, tx.Create(&conv).Error
}

// messages lists the session's messages in the given order. A session with a document
// but no conversation yet has no messages.
func (s *Store) messages(ctx context.Context, sessionId string, order string, limit int) ([]messageRow, error) {
	db := s.db.WithContext(ctx)
	doc, err := findDocument(db, sessionId)
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	q := db.Model(&messageRow{}).
		Joins("JOIN chat_sessions ON chat_sessions.id = messages.chat_session_id").
		Where("chat_sessions.document_id = ?", doc.Id).
		Order(qualify(order))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// qualify prefixes the order columns with the messages table since the query joins chat_sessions.
func qualify(order string) string {
	parts := strings.Split(order, ",")
	for i, p := range parts {
		parts[i] = "messages." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func toMessages(rows []messageRow, sessionId string) []commonModels.Message {
	out := make([]commonModels.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(sessionId))
	}
	return out
}
