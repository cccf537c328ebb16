package store

import (
	"context"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/data/redisStore"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

const jobKeyPrefix = "job:"

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("JobStore"),
	}
}

// NewJobStore returns the Redis job store, or the in-memory one when Redis cannot be reached.
func NewJobStore(ctx context.Context, cfg *config.Config) (jobModel.JobStore, func()) {
	rs, err := redisStore.Open(ctx, redisStore.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       config.RedisJobStore,
	})
	if err != nil {
		logger_i.NewLogger("JobStore").Warn("Redis job store offline, using in-memory store", "error", err)
		return InitInMemoryJobStore(), func() {}
	}
	return NewRedisJobStore(rs), func() { _ = rs.Close() }
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.FromContext(ctx).With("jobId", job.Id)
	if err := s.store.SetJSON(ctx, jobKeyPrefix+job.Id, job, config.RedisJobStoreTTL); err != nil {
		log.Error("Error saving job to Redis", "error", err)
		return err
	}
	log.Debug("Saved job to Redis", "status", job.Status, "step", job.CurrentStep)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	found, err := s.store.GetJSON(ctx, jobKeyPrefix+jobId, &job)
	if err != nil {
		s.logger.FromContext(ctx).Error("Error reading job from Redis", "jobId", jobId, "error", err)
		return jobModel.Job{}, false
	}
	return job, found
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKeyPrefix+jobID); err != nil {
		s.logger.Error("Error deleting job from Redis", "jobId", jobID, "error", err)
		return
	}
	s.logger.Debug("Job deleted from Redis", "jobId", jobID)
}
