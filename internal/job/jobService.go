package job

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/metrics"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/google/uuid"
)

var logger = logger_i.NewLogger("JobService")

var ErrQueueClosed = errors.New("job queue is shutting down")

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
	}
}

// NewJob fills in the bookkeeping fields of a job about to be queued.
func NewJob(ctx context.Context, jobType jobModel.JobType, sessionId string, payload jobModel.JobPayload) jobModel.Job {
	step := jobModel.UserQueryInit
	if jobType == jobModel.JobTypeIngest {
		step = jobModel.IngestInit
	}
	return jobModel.Job{
		Id:          uuid.NewString(),
		SessionId:   sessionId,
		TraceId:     logger_i.TraceId(ctx),
		JobType:     jobType,
		JobPayload:  payload,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: step,
	}
}

// Submit queues the job and waits for a worker to finish it. The job carries ctx so a
// caller that goes away cancels the provider calls made on its behalf.
func (s *Service) Submit(ctx context.Context, job jobModel.Job) (jobModel.Job, error) {
	log := logger.FromContext(ctx).With("jobId", job.Id, "jobType", job.JobType)

	job.Ctx = ctx
	job.Reply = make(chan jobModel.Job, 1)
	if err := s.JobStore.SaveJob(ctx, job); err != nil {
		log.Warn("Failed to save queued job", "error", err)
	}

	metrics.IncrementJobsInQueue()
	select {
	case s.JobChannel <- job: //blocks when the buffer is full so the system is not overwhelmed
	case <-ctx.Done():
		metrics.DecrementJobsInQueue()
		return job, ctx.Err()
	}
	log.Debug("Created new job")
	s.signalDispatcher(job)

	select {
	case done := <-job.Reply:
		return done, nil
	case <-ctx.Done():
		log.Info("Caller left before the job finished", "error", ctx.Err())
		return job, ctx.Err()
	}
}

// a new worker is added every RequestsPerNewWorkerCount requests and for every ingestion,
// ingestion embeds in batches and holds a worker the longest. Idle workers retire.
func (s *Service) signalDispatcher(job jobModel.Job) {
	count := atomic.AddInt64(&s.RequestCount, 1)
	if count%config.RequestsPerNewWorkerCount != 0 && job.JobType != jobModel.JobTypeIngest {
		return
	}
	metrics.StartDispatcherSignalCount()
	select {
	case s.DispatcherChannel <- true:
	default:
		//a signal is already pending
	}
}

func (s *Service) Status(ctx context.Context, id string) (jobModel.Job, bool) {
	if id == "" {
		return jobModel.Job{}, false
	}
	return s.JobStore.GetJob(ctx, id)
}
