package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	jobmodel "github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		// Record total time at the end
		metrics.CaptureJobMetrics(string(job.JobType)+"_"+string(job.Status), time.Since(start))
	}()

	parent := job.Ctx
	if parent == nil {
		parent = context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	}
	ctx, cancel := context.WithTimeout(parent, config.JobTimeout)
	defer cancel()
	log := logger.FromContext(ctx).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	job.Status = jobmodel.JobStatusRunning
	saveJobState(ctx, job)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job.CurrentStep = jobmodel.IngestProcessing
		job = _ragService.IngestDocument(ctx, job)
	default:
		job.CurrentStep = jobmodel.RAGCall
		job = _ragService.ProcessRequest(ctx, job)
	}

	job.Finish(time.Now())
	//status writes outlive a cancelled caller so GET /status shows how the job ended
	saveJobState(context.WithoutCancel(ctx), job)

	if job.Reply != nil {
		job.Reply <- job //buffered by the submitter, never blocks
	}
}

func removeWorker(reason string) {
	atomic.AddInt64(&currentWorkerCount, -1)
	retire(reason)
}

// retire releases a worker whose slot in currentWorkerCount is already given back.
func retire(reason string) {
	workerWaitGroup.Done()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job) {
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.FromContext(ctx).Error("Failed to update job status", "jobId", job.Id, "error", err)
	}
}
