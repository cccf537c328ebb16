package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/akolanti/PdfQA/internal/adapter"
	"github.com/akolanti/PdfQA/internal/adapter/utils"
	"github.com/akolanti/PdfQA/internal/api"
	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/domain/ragErrors"
	"github.com/akolanti/PdfQA/internal/job"
	"github.com/akolanti/PdfQA/internal/rag/ingest"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

// RootHandler godoc
// @Summary      Service banner
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.RootResponse
// @Router       / [get]
func RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.RootResponse{Message: "PDF RAG API is running", Version: "1.0.0"})
}

// HealthHandler godoc
// @Summary      Liveness check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Failure      503  {object}  api.HealthResponse
// @Router       /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if handlerInstance != nil && handlerInstance.health != nil {
		if err := handlerInstance.health.Ping(r.Context()); err != nil {
			logRH.FromContext(r.Context()).Error("Health check failed", "error", err)
			writeJsonResponse(w, http.StatusServiceUnavailable, api.HealthResponse{Status: "unhealthy"})
			return
		}
	}
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "healthy"})
}

// UploadHandler godoc
// @Summary      Upload a document for a session
// @Description  Extracts, chunks and indexes the file under the session. One active document per session.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        file        formData  file    true   "PDF, DOCX, ODT, RTF or TXT file"
// @Param        session_id  formData  string  false  "Session id, defaults to \"default\""
// @Success      200  {object}  api.UploadResponse
// @Failure      400  {object}  api.MessageResponse  "Missing or unsupported file"
// @Failure      409  {object}  api.MessageResponse  "Session already has a document"
// @Failure      413  {object}  api.MessageResponse  "File too large"
// @Failure      422  {object}  api.MessageResponse  "File could not be read"
// @Failure      502  {object}  api.MessageResponse  "Embedding or vector index failure"
// @Router       /api/upload [post]
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logRH.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		WriteErrorResponse(w, http.StatusBadRequest, "File too large or bad request")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("Couldn't remove multipart temp files", "error", err)
		}
	}()

	sessionId := strings.TrimSpace(r.FormValue("session_id"))
	if sessionId == "" {
		sessionId = config.DefaultSessionId
	}

	fileReader, fileMetadata, err := r.FormFile("file")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	if !ingest.SupportedFile(fileMetadata.Filename) {
		WriteErrorResponse(w, http.StatusBadRequest, "Only PDF, DOCX, ODT, RTF and TXT files are supported")
		return
	}

	//checked again inside the transaction, this only saves writing the file
	active, err := handlerInstance.sessions.Active(ctx, sessionId)
	if err != nil {
		log.Error("Error checking session", "sessionId", sessionId, "error", err)
		writeError(w, err)
		return
	}
	if active {
		writeError(w, ragErrors.ErrSessionExists)
		return
	}

	newJob := job.NewJob(ctx, jobModel.JobTypeIngest, sessionId, jobModel.JobPayload{
		IngestFileName: filepath.Base(fileMetadata.Filename),
	})
	path, size, err := saveUpload(handlerInstance.uploadDir, newJob.Id, fileReader, fileMetadata.Filename)
	if err != nil {
		log.Error("Storage error", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}
	newJob.JobPayload.IngestURL = path
	newJob.JobPayload.FileSize = size

	done, err := runJob(ctx, newJob)
	if err != nil {
		writeError(w, err)
		return
	}
	if done.Failed() {
		writeJobFailure(w, done)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToUploadResponse(done))
}

// ChatHandler godoc
// @Summary      Ask a question about the session's document
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest      true  "Question and optional session id"
// @Success      200      {object}  api.ChatResponse
// @Failure      400      {object}  api.MessageResponse  "No document uploaded or empty question"
// @Failure      502      {object}  api.MessageResponse  "Embedding, vector index or model failure"
// @Router       /api/chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	var requestData api.ChatRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the Chat handler reader", "error", err)
		}
	}(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
		logRH.FromContext(ctx).Warn("Bad Chat Request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if strings.TrimSpace(requestData.Question) == "" {
		writeError(w, ragErrors.ErrEmptyQuestion)
		return
	}
	sessionId := strings.TrimSpace(requestData.SessionId)
	if sessionId == "" {
		sessionId = config.DefaultSessionId
	}

	newJob := job.NewJob(ctx, jobModel.JobTypeQuery, sessionId, jobModel.JobPayload{Question: requestData.Question})
	done, err := runJob(ctx, newJob)
	if err != nil {
		writeError(w, err)
		return
	}
	if done.Failed() {
		writeJobFailure(w, done)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(done))
}

// DeleteSessionHandler godoc
// @Summary      Clear a session
// @Description  Removes the session's vectors, history, token usage, document record and uploaded file.
// @Tags         Sessions
// @Produce      json
// @Param        session_id  path      string  true  "Session id"
// @Success      200         {object}  api.MessageResponse
// @Failure      500         {object}  api.MessageResponse
// @Router       /api/session/{session_id} [delete]
func DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionId := utils.GetChiURLParam(r, "session_id")
	if err := handlerInstance.sessions.Destroy(r.Context(), sessionId); err != nil {
		logRH.FromContext(r.Context()).Error("Error clearing session", "sessionId", sessionId, "error", err)
		writeError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.SessionCleared(sessionId))
}

// DocumentsHandler godoc
// @Summary      List uploaded documents
// @Tags         Sessions
// @Produce      json
// @Success      200  {object}  api.DocumentsResponse
// @Router       /api/documents [get]
func DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := handlerInstance.sessions.List(r.Context())
	if err != nil {
		logRH.FromContext(r.Context()).Error("Error listing documents", "error", err)
		writeError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentsResponse(docs))
}

// HistoryHandler godoc
// @Summary      Full conversation history of a session
// @Tags         Sessions
// @Produce      json
// @Param        session_id  path      string  true  "Session id"
// @Success      200         {object}  api.HistoryResponse
// @Router       /api/session/{session_id}/history [get]
func HistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionId := utils.GetChiURLParam(r, "session_id")
	msgs, err := handlerInstance.sessions.History(r.Context(), sessionId)
	if err != nil {
		logRH.FromContext(r.Context()).Error("Error reading history", "sessionId", sessionId, "error", err)
		writeError(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToHistoryResponse(sessionId, msgs))
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of an upload or chat job using its ID.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse      "The current status of the job"
// @Failure      404  {object}  api.MessageResponse  "Job not found"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	idString := utils.GetChiURLParam(r, "id")
	logRH.FromContext(r.Context()).Debug("Get Status Request", "URL path", r.URL.Path)

	result, isFound := GetJobStatus(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}
