package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
)

// Request is everything one generation call sees. Context holds the retrieved chunk texts.
type Request struct {
	Question string
	Context  []string
	History  []commonModels.HistoryTurn
}

// Generation is the model output together with the model that produced it.
type Generation struct {
	Text  string
	Model string
}

type Provider interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

// BuildPrompt renders the user turn: grounding context, the paired history and the question.
// The system instruction is passed separately by each adapter.
func BuildPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("Context:\n")
	for i, c := range req.Context {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c)
	}

	if len(req.History) > 0 {
		sb.WriteString("\n\nChat History:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&sb, "Human: %s\nAssistant: %s\n", turn.User, turn.Assistant)
		}
	}

	fmt.Fprintf(&sb, "\n\nUser Question: %s", req.Question)
	return sb.String()
}
