package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/data/redisStore"
	"github.com/akolanti/PdfQA/internal/data/store"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(id string) jobModel.Job {
	return jobModel.Job{
		Id:        id,
		SessionId: "s1",
		JobType:   jobModel.JobTypeQuery,
		Status:    jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			Question: "What does page two say?",
			Sources:  []string{"Page 2, Chunk 1"},
		},
		Reply: make(chan jobModel.Job, 1),
	}
}

func runJobStoreLifecycle(t *testing.T, jobStore jobModel.JobStore) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	job := testJob("job_abc_123")

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		require.NoError(t, jobStore.SaveJob(ctx, job))

		got, found := jobStore.GetJob(ctx, job.Id)
		require.True(t, found, "Job was saved but not found")
		assert.Equal(t, job.JobPayload.Question, got.JobPayload.Question)
		assert.Equal(t, job.JobPayload.Sources, got.JobPayload.Sources)
		assert.Equal(t, "s1", got.SessionId)
		assert.Nil(t, got.Reply)
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		_, found := jobStore.GetJob(ctx, "ghost-id")
		assert.False(t, found)
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, job.Id)
		_, found := jobStore.GetJob(ctx, job.Id)
		assert.False(t, found)
	})
}

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jobStore := store.NewRedisJobStore(redisStore.NewWithClient(client))

	runJobStoreLifecycle(t, jobStore)

	require.NoError(t, jobStore.SaveJob(context.Background(), testJob("ttl-job")))
	assert.True(t, mr.Exists("job:ttl-job"))
	assert.Equal(t, config.RedisJobStoreTTL, mr.TTL("job:ttl-job"))
}

func TestInMemoryJobStore_Lifecycle(t *testing.T) {
	runJobStoreLifecycle(t, store.InitInMemoryJobStore())
}

func TestNewJobStore_FallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	cfg.RedisAddr = "127.0.0.1:1"

	jobStore, closeFn := store.NewJobStore(context.Background(), cfg)
	defer closeFn()

	_, ok := jobStore.(*store.InMemoryJobStore)
	assert.True(t, ok)
}

func TestNewJobStore_UsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.RedisAddr = mr.Addr()

	jobStore, closeFn := store.NewJobStore(context.Background(), cfg)
	defer closeFn()

	_, ok := jobStore.(*store.RedisJobStore)
	assert.True(t, ok)
}

func TestRedisJobStore_Race(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jobStore := store.NewRedisJobStore(redisStore.NewWithClient(client))

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	_, found := jobStore.GetJob(ctx, "race-job")
	assert.True(t, found)
}
