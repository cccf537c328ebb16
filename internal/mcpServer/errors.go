package mcpServer

import (
	"errors"

	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
)

// toolError hides provider internals from tool callers, same as the HTTP surface.
func toolError(err error) error {
	return errors.New(ragErrors.UserMessage(err))
}
