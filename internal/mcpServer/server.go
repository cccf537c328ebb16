package mcpServer

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

var (
	logger = logger_i.NewLogger("MCP")

	ErrMissingAnswerer = errors.New("mcp: answer service is required")
	ErrMissingLister   = errors.New("mcp: document lister is required")
)

// Answerer answers a question against a session's document.
type Answerer interface {
	Answer(ctx context.Context, sessionId string, question string) (commonModels.Answer, error)
}

type DocumentLister interface {
	List(ctx context.Context) ([]commonModels.Document, error)
}

// Server exposes the question answering pipeline as MCP tools.
type Server struct {
	answerer Answerer
	docs     DocumentLister
	server   *mcp.Server
}

func NewServer(answerer Answerer, docs DocumentLister) (*Server, error) {
	if answerer == nil {
		return nil, ErrMissingAnswerer
	}
	if docs == nil {
		return nil, ErrMissingLister
	}

	s := &Server{
		answerer: answerer,
		docs:     docs,
		server:   mcp.NewServer(&mcp.Implementation{Name: "pdfqa", Version: Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Handler serves the streamable HTTP transport, mounted next to the REST routes.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}
