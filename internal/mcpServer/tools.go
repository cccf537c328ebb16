package mcpServer

import (
	"context"
	"strings"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type AskInput struct {
	SessionId string `json:"session_id,omitempty" jsonschema:"session that owns the uploaded document (default \"default\")"`
	Question  string `json:"question" jsonschema:"question to answer from the document"`
}

type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type ListInput struct{}

type DocumentOutput struct {
	SessionId  string `json:"session_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	UploadedAt string `json:"uploaded_at"`
}

type ListOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_document",
		Description: "Answer a question using the document uploaded to a session",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the uploaded documents, newest first",
	}, s.handleList)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	sessionId := strings.TrimSpace(input.SessionId)
	if sessionId == "" {
		sessionId = config.DefaultSessionId
	}

	answer, err := s.answerer.Answer(ctx, sessionId, input.Question)
	if err != nil {
		logger.FromContext(ctx).Warn("ask_document failed", "sessionId", sessionId, "error", err)
		return nil, AskOutput{}, toolError(err)
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, AskOutput{Answer: answer.Answer, Sources: sources}, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, ListOutput, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, ListOutput{}, toolError(err)
	}

	out := ListOutput{Documents: make([]DocumentOutput, len(docs)), Count: len(docs)}
	for i, d := range docs {
		out.Documents[i] = DocumentOutput{
			SessionId:  d.SessionId,
			Filename:   d.Filename,
			ChunkCount: d.ChunkCount,
			UploadedAt: d.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return nil, out, nil
}
