package handlers

import (
	"context"
	"sync"

	"github.com/akolanti/PdfQA/internal/domain/commonModels"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/job"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

// Sessions is the slice of the session lifecycle the HTTP layer needs.
type Sessions interface {
	Active(ctx context.Context, sessionId string) (bool, error)
	List(ctx context.Context) ([]commonModels.Document, error)
	History(ctx context.Context, sessionId string) ([]commonModels.Message, error)
	Destroy(ctx context.Context, sessionId string) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type JobHandler struct {
	service   *job.Service
	sessions  Sessions
	uploadDir string
	health    Pinger
}

func InitJobHandler(jobService *job.Service, sessions Sessions, uploadDir string, health Pinger) {
	once.Do(func() {
		handlerInstance = &JobHandler{
			service:   jobService,
			sessions:  sessions,
			uploadDir: uploadDir,
			health:    health,
		}
		logJH.Info("Starting job handler", "uploadDir", uploadDir)
	})
}

// runJob queues the job and waits for the worker that picks it up.
func runJob(ctx context.Context, newJob jobModel.Job) (jobModel.Job, error) {
	log := logJH.FromContext(ctx).With("jobId", newJob.Id, "sessionId", newJob.SessionId)
	log.Info("To create new job", "jobType", newJob.JobType)

	done, err := handlerInstance.service.Submit(ctx, newJob)
	if err != nil {
		log.Warn("Job did not finish", "error", err)
		return done, err
	}
	log.Debug("Job finished", "status", done.Status, "step", done.CurrentStep)
	return done, nil
}

func GetJobStatus(ctx context.Context, id string) (jobModel.Job, bool) {
	if handlerInstance == nil {
		return jobModel.Job{}, false
	}
	return handlerInstance.service.Status(ctx, id)
}
