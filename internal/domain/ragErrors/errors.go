package ragErrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotInitialized = errors.New("session not initialized: please upload a PDF first")
	ErrSessionExists  = errors.New("session already has an active document")
	ErrEmptyDocument  = errors.New("document has no extractable text")
	ErrEmptyQuestion  = errors.New("question is empty")
)

// ProviderError is a failure of an embedding, generation or vector index backend.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Timeout reports whether the backend call ran out of time.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func NewProviderError(provider string, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// ExtractionError means the uploaded file could not be read.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceWarning is a durable store write that failed after the answer was produced.
// It is logged, never returned to the HTTP caller as a failure.
type PersistenceWarning struct {
	Step string
	Err  error
}

func (e *PersistenceWarning) Error() string {
	return fmt.Sprintf("persistence warning at %s: %v", e.Step, e.Err)
}

func (e *PersistenceWarning) Unwrap() error { return e.Err }

func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// HTTPStatus maps the error taxonomy onto response codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyDocument), IsExtractionError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return 499
	case IsProviderError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the human readable text returned to callers. Provider details stay in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInitialized):
		return "Please upload a PDF first"
	case errors.Is(err, ErrSessionExists), errors.Is(err, ErrEmptyDocument), errors.Is(err, ErrEmptyQuestion):
		return err.Error()
	case IsExtractionError(err):
		return "Failed to process PDF: the file could not be read"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case IsProviderError(err):
		return "Failed to generate answer: an upstream service is unavailable"
	default:
		return "Internal Server Error"
	}
}
