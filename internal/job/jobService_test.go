package job

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/PdfQA/internal/data/store"
	"github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(buffer int) *Service {
	return InitJobService(ServiceConfig{
		JobChannel:        make(chan jobModel.Job, buffer),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          store.InitInMemoryJobStore(),
	})
}

func TestSubmit_WaitsForReply(t *testing.T) {
	s := newService(1)
	go func() {
		j := <-s.JobChannel
		j.Status = jobModel.JobStatusComplete
		j.JobPayload.Answer = "done"
		j.Reply <- j
	}()

	j := NewJob(context.Background(), jobModel.JobTypeQuery, "s1", jobModel.JobPayload{Question: "q"})
	got, err := s.Submit(context.Background(), j)

	require.NoError(t, err)
	assert.Equal(t, "done", got.JobPayload.Answer)

	queued, found := s.Status(context.Background(), j.Id)
	require.True(t, found)
	assert.Equal(t, jobModel.JobStatusQueued, queued.Status)
}

func TestSubmit_CallerCancels(t *testing.T) {
	s := newService(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Submit(ctx, NewJob(ctx, jobModel.JobTypeQuery, "s1", jobModel.JobPayload{}))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit_IngestSignalsDispatcher(t *testing.T) {
	s := newService(1)
	go func() {
		j := <-s.JobChannel
		j.Reply <- j
	}()

	_, err := s.Submit(context.Background(), NewJob(context.Background(), jobModel.JobTypeIngest, "s1", jobModel.JobPayload{}))
	require.NoError(t, err)

	select {
	case <-s.DispatcherChannel:
	default:
		t.Fatal("ingestion should ask for a new worker")
	}
}

func TestNewJob(t *testing.T) {
	j := NewJob(context.Background(), jobModel.JobTypeIngest, "s1", jobModel.JobPayload{IngestFileName: "a.pdf"})
	assert.NotEmpty(t, j.Id)
	assert.Equal(t, jobModel.IngestInit, j.CurrentStep)
	assert.Equal(t, jobModel.JobStatusQueued, j.Status)

	q := NewJob(context.Background(), jobModel.JobTypeQuery, "s1", jobModel.JobPayload{})
	assert.Equal(t, jobModel.UserQueryInit, q.CurrentStep)
	assert.NotEqual(t, j.Id, q.Id)
}
