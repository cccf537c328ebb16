package commonModels

import (
	"fmt"
	"time"
)

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"

type DocumentStatus string

// A document is pending while its upload is being indexed. The session id is taken
// but queries still see no document until it turns active.
const (
	DocumentPending DocumentStatus = "pending"
	DocumentActive  DocumentStatus = "active"
	DocumentDeleted DocumentStatus = "deleted"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Document is one uploaded file. SessionId is unique among pending and active documents.
type Document struct {
	Id         string         `json:"id"`
	SessionId  string         `json:"session_id"`
	Filename   string         `json:"filename"`
	FileSize   int64          `json:"file_size"`
	ChunkCount int            `json:"chunk_count"`
	FilePath   string         `json:"-"`
	Status     DocumentStatus `json:"status"`
	CreatedAt  time.Time      `json:"uploaded_at"`
}

// Chunk is an immutable text segment of a document.
type Chunk struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
	Index   int    `json:"chunk_index"`
}

func (c Chunk) SourceLabel() string {
	return fmt.Sprintf("Page %d, Chunk %d", c.Page, c.Index)
}

type Conversation struct {
	Id         string    `json:"id"`
	DocumentId string    `json:"document_id"`
	Name       string    `json:"session_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Message struct {
	Id         uint64    `json:"id"`
	SessionId  string    `json:"session_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Sources    []string  `json:"sources,omitempty"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type TokenUsage struct {
	SessionId    string    `json:"session_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryTurn pairs a user utterance with the assistant reply. Either side may be empty.
type HistoryTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Answer is the result of one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Model   string   `json:"model"`
}
