package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type storedJob struct {
	job     jobModel.Job
	expires time.Time
}

// InMemoryJobStore backs job status when Redis is offline. Entries expire after the
// same TTL Redis applies; expired entries are dropped on the next write.
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]storedJob
	ttl  time.Duration
	now  func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs: make(map[string]storedJob),
		ttl:  config.RedisJobStoreTTL,
		now:  time.Now,
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	//the reply channel and the request context belong to the caller, never keep them
	job.Reply = nil
	job.Ctx = nil

	now := store.now()
	store.mu.Lock()
	defer store.mu.Unlock()
	store.evictLocked(now)
	store.jobs[job.Id] = storedJob{job: job, expires: now.Add(store.ttl)}
	inMemLogger.FromContext(ctx).Debug("Saved job to store", "jobId", job.Id, "status", job.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	entry, found := store.jobs[jobId]
	if !found || !store.now().Before(entry.expires) {
		return jobModel.Job{}, false
	}
	return entry.job, true
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.jobs, jobID)
}

func (store *InMemoryJobStore) evictLocked(now time.Time) {
	for id, entry := range store.jobs {
		if !now.Before(entry.expires) {
			delete(store.jobs, id)
		}
	}
}
