package api

import "time"

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	SessionId string            `json:"session_id" example:"default"`
	JobType   string            `json:"job_type" example:"Query"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Chunks   int      `json:"chunks,omitempty"`
}

type Result struct {
	Status              string       `json:"status"`
	Step                string       `json:"step,omitempty"`
	RAGExternalResponse *RAGResponse `json:"rag_response,omitempty"`
}

// responses---------------------

type RootResponse struct {
	Message string `json:"message" example:"PDF RAG API is running"`
	Version string `json:"version" example:"1.0.0"`
}

type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

type MessageResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"Please upload a PDF first"`
}

type UploadResponse struct {
	Success   bool   `json:"success" example:"true"`
	Message   string `json:"message" example:"PDF processed successfully"`
	Chunks    int    `json:"chunks" example:"3"`
	SessionId string `json:"session_id" example:"default"`
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Success bool     `json:"success" example:"true"`
}

type DocumentView struct {
	Id         string    `json:"id"`
	SessionId  string    `json:"session_id"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DocumentsResponse struct {
	Success   bool           `json:"success"`
	Documents []DocumentView `json:"documents"`
}

type MessageView struct {
	Role       string    `json:"role" example:"user"`
	Content    string    `json:"content"`
	Sources    []string  `json:"sources,omitempty"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Success   bool          `json:"success"`
	SessionId string        `json:"session_id"`
	Messages  []MessageView `json:"messages"`
}

// requests---------------------

type ChatRequest struct {
	Question  string `json:"question" validate:"required" example:"What is on page two?"`
	SessionId string `json:"session_id,omitempty" example:"default"`
}
