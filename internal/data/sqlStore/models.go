package sqlStore

import (
	"encoding/json"
	"time"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"gorm.io/datatypes"
)

type documentRow struct {
	Id         string    `gorm:"primaryKey;type:varchar(36)"`
	SessionId  string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Filename   string    `gorm:"type:varchar(255);not null"`
	FileSize   int64     `gorm:"not null;default:0"`
	ChunkCount int       `gorm:"not null;default:0"`
	FilePath   string    `gorm:"type:text"`
	Status     string    `gorm:"type:varchar(50);not null;default:active"`
	CreatedAt  time.Time `gorm:"column:uploaded_at;not null"`
}

func (documentRow) TableName() string { return "documents" }

type conversationRow struct {
	Id          string    `gorm:"primaryKey;type:varchar(36)"`
	DocumentId  string    `gorm:"type:varchar(36);index;not null"`
	SessionName string    `gorm:"type:varchar(255)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (conversationRow) TableName() string { return "chat_sessions" }

// messageRow ids are autoincrement so rows written in the same instant still have a total order.
type messageRow struct {
	Id            uint64         `gorm:"primaryKey;autoIncrement"`
	ChatSessionId string         `gorm:"type:varchar(36);index;not null"`
	Role          string         `gorm:"type:varchar(20);not null"`
	Content       string         `gorm:"type:text;not null"`
	Sources       datatypes.JSON `gorm:"column:sources"`
	TokenCount    int            `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"index;not null"`
}

func (messageRow) TableName() string { return "messages" }

type tokenUsageRow struct {
	Id           uint64    `gorm:"primaryKey;autoIncrement"`
	SessionId    string    `gorm:"type:varchar(255);index;not null"`
	Model        string    `gorm:"type:varchar(100)"`
	InputTokens  int       `gorm:"not null;default:0"`
	OutputTokens int       `gorm:"not null;default:0"`
	TotalTokens  int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"index;not null"`
}

func (tokenUsageRow) TableName() string { return "token_usage" }

func allModels() []any {
	return []any{&documentRow{}, &conversationRow{}, &messageRow{}, &tokenUsageRow{}}
}

func (r documentRow) toDomain() commonModels.Document {
	return commonModels.Document{
		Id:         r.Id,
		SessionId:  r.SessionId,
		Filename:   r.Filename,
		FileSize:   r.FileSize,
		ChunkCount: r.ChunkCount,
		FilePath:   r.FilePath,
		Status:     commonModels.DocumentStatus(r.Status),
		CreatedAt:  r.CreatedAt,
	}
}

func (r messageRow) toDomain(sessionId string) commonModels.Message {
	var sources []string
	if len(r.Sources) > 0 {
		//a malformed sources column degrades to no sources, the message text is still useful
		_ = json.Unmarshal(r.Sources, &sources)
	}
	return commonModels.Message{
		Id:         r.Id,
		SessionId:  sessionId,
		Role:       commonModels.Role(r.Role),
		Content:    r.Content,
		Sources:    sources,
		TokenCount: r.TokenCount,
		CreatedAt:  r.CreatedAt,
	}
}
