package adapter

import (
	"fmt"

	"github.com/akolanti/PdfQA/internal/api"
	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
)

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:              string(job.Status),
		Step:                string(job.CurrentStep),
		RAGExternalResponse: ToRAGExternalStatus(job.JobPayload),
	}

	return api.JobResponse{
		Id:        job.Id,
		SessionId: job.SessionId,
		JobType:   string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Sources) == 0 && ragData.ChunkCount == 0 {
		return nil
	}

	return &api.RAGResponse{
		Question: ragData.Question,
		Answer:   ragData.Answer,
		Sources:  ragData.Sources,
		Chunks:   ragData.ChunkCount,
	}
}

func ToUploadResponse(job jobModel.Job) api.UploadResponse {
	return api.UploadResponse{
		Success:   true,
		Message:   "PDF processed successfully",
		Chunks:    job.JobPayload.ChunkCount,
		SessionId: job.SessionId,
	}
}

func ToChatResponse(job jobModel.Job) api.ChatResponse {
	sources := job.JobPayload.Sources
	if sources == nil {
		sources = []string{}
	}
	return api.ChatResponse{
		Answer:  job.JobPayload.Answer,
		Sources: sources,
		Success: true,
	}
}

func ToDocumentsResponse(docs []commonModels.Document) api.DocumentsResponse {
	views := make([]api.DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, api.DocumentView{
			Id:         d.Id,
			SessionId:  d.SessionId,
			Filename:   d.Filename,
			FileSize:   d.FileSize,
			ChunkCount: d.ChunkCount,
			Status:     string(d.Status),
			UploadedAt: d.CreatedAt,
		})
	}
	return api.DocumentsResponse{Success: true, Documents: views}
}

func ToHistoryResponse(sessionId string, msgs []commonModels.Message) api.HistoryResponse {
	views := make([]api.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, api.MessageView{
			Role:       string(m.Role),
			Content:    m.Content,
			Sources:    m.Sources,
			TokenCount: m.TokenCount,
			CreatedAt:  m.CreatedAt,
		})
	}
	return api.HistoryResponse{Success: true, SessionId: sessionId, Messages: views}
}

func SessionCleared(sessionId string) api.MessageResponse {
	return api.MessageResponse{Success: true, Message: fmt.Sprintf("Session %s cleared", sessionId)}
}

func Failure(message string) api.MessageResponse {
	return api.MessageResponse{Success: false, Message: message}
}
