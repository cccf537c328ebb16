package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit    InternalStatus = "Init"
	SessionCheck     InternalStatus = "SessionCheck"
	HistoryCall      InternalStatus = "History"
	RAGCall          InternalStatus = "RAG"
	LLMCall          InternalStatus = "LLM"
	VectorDBCall     InternalStatus = "VectorDB"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	PersistenceCall  InternalStatus = "Persistence"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	IngestChunking   InternalStatus = "IngestChunking"
	IngestIndexing   InternalStatus = "IngestIndexing"
	IngestRecording  InternalStatus = "IngestRecording"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	SessionId   string         `json:"session_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`

	// request scoped, never persisted: cancelling Ctx cancels the in-flight provider calls
	Ctx   context.Context `json:"-"`
	Reply chan Job        `json:"-"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Model    string   `json:"model,omitempty"`

	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestURL      string `json:"ingest_url,omitempty"`
	FileSize       int64  `json:"file_size,omitempty"`
	ChunkCount     int    `json:"chunk_count,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

func (j Job) Failed() bool {
	return j.Status == JobStatusError
}

// Finish moves the job to its terminal state. A job already marked as failed stays failed.
func (j *Job) Finish(now time.Time) {
	if j.Failed() {
		j.CurrentStep = Error
	} else {
		j.Status = JobStatusComplete
		j.CurrentStep = Complete
	}
	j.EndTime = now
}
