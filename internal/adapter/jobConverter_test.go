package adapter

import (
	"testing"
	"time"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAPIResponse(t *testing.T) {
	job := jobModel.Job{
		Id:          "j1",
		SessionId:   "s1",
		JobType:     jobModel.JobTypeQuery,
		Status:      jobModel.JobStatusError,
		CurrentStep: jobModel.LLMCall,
		Error:       jobModel.JobError{Code: 502, Message: "upstream", Retry: true},
	}

	res := ToAPIResponse(job)

	assert.Equal(t, "s1", res.SessionId)
	assert.Equal(t, "Error", res.Result.Status)
	assert.Equal(t, "LLM", res.Result.Step)
	assert.Nil(t, res.Result.RAGExternalResponse)
	require.NotNil(t, res.Error)
	assert.True(t, res.Error.Retry)
}

func TestToChatResponse_NeverNullSources(t *testing.T) {
	res := ToChatResponse(jobModel.Job{JobPayload: jobModel.JobPayload{Answer: "a"}})
	assert.NotNil(t, res.Sources)
	assert.True(t, res.Success)
}

func TestToUploadResponse(t *testing.T) {
	res := ToUploadResponse(jobModel.Job{SessionId: "s1", JobPayload: jobModel.JobPayload{ChunkCount: 3}})
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, "s1", res.SessionId)
	assert.True(t, res.Success)
}

func TestToDocumentsAndHistory(t *testing.T) {
	now := time.Now()
	docs := ToDocumentsResponse([]commonModels.Document{{Id: "d", SessionId: "s", Filename: "f.pdf", Status: commonModels.DocumentActive, CreatedAt: now}})
	require.Len(t, docs.Documents, 1)
	assert.Equal(t, "active", docs.Documents[0].Status)
	assert.Equal(t, now, docs.Documents[0].UploadedAt)

	hist := ToHistoryResponse("s", nil)
	assert.NotNil(t, hist.Messages)
	assert.Equal(t, "Session s cleared", SessionCleared("s").Message)
}
