package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/PdfQA/internal/adapter"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, message string) {
	writeJsonResponse(w, httpCode, adapter.Failure(message))
}

// writeError classifies err with the rag error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	WriteErrorResponse(w, ragErrors.HTTPStatus(err), ragErrors.UserMessage(err))
}

// writeJobFailure answers with the code the worker recorded on the job.
func writeJobFailure(w http.ResponseWriter, failed jobModel.Job) {
	code := failed.Error.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}
	WriteErrorResponse(w, code, failed.Error.Message)
}

// saveUpload copies the multipart file to dir as "{prefix}-{basename}".
func saveUpload(dir string, prefix string, file multipart.File, name string) (string, int64, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", 0, err
	}
	target := filepath.Join(dir, fmt.Sprintf("%s-%s", prefix, filepath.Base(name)))
	out, err := os.Create(target)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	written, err := io.Copy(out, file)
	if err != nil {
		_ = os.Remove(target)
		return "", 0, err
	}
	return target, written, nil
}
