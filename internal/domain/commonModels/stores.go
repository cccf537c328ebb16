package commonModels

import "context"

// SessionContextStore is the only path the query pipeline uses to read or write conversation state.
// GetDocument returns ragErrors.ErrNotInitialized when the session has no document.
type SessionContextStore interface {
	GetDocument(ctx context.Context, sessionId string) (Document, error)
	AppendMessage(ctx context.Context, sessionId string, role Role, content string, sources []string, tokenCount int) error
	GetRecent(ctx context.Context, sessionId string, limit int) ([]Message, error)
	GetFullHistory(ctx context.Context, sessionId string) ([]Message, error)
	RecordTokenUsage(ctx context.Context, usage TokenUsage) error
}

// DocumentStore holds the durable document records owned by the session lifecycle.
type DocumentStore interface {
	// CreateDocument fails with ragErrors.ErrSessionExists while the session holds a pending or active document.
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	// ActivateDocument turns the session's pending document active with its final chunk count.
	ActivateDocument(ctx context.Context, sessionId string, chunkCount int) (Document, error)
	// ReleaseDocument drops a pending document so the session id can be reused.
	ReleaseDocument(ctx context.Context, sessionId string) error
	GetDocument(ctx context.Context, sessionId string) (Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	// DeleteSessionRecords removes messages, conversation, token usage and the document in one transaction.
	DeleteSessionRecords(ctx context.Context, sessionId string) error
}
