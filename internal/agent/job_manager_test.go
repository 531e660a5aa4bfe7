package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobStatus(jm *JobManager, id string) JobStatus {
	job, _ := jm.GetJob(id)
	return job.Status
}

func TestJobManagerSuccessAndFailure(t *testing.T) {
	jm := NewJobManager()
	release := make(chan struct{})

	ok, err := jm.StartJob("cow", "eat", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, ok.Status)
	assert.NotEmpty(t, ok.ID)

	_, err = jm.StartJob("cow", "eat", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrJobBusy)

	close(release)
	require.Eventually(t, func() bool { return jobStatus(jm, ok.ID) == JobStatusSuccess }, time.Second, time.Millisecond)

	current, found := jm.CurrentFor("cow")
	require.True(t, found)
	assert.Equal(t, ok.ID, current.ID)

	jm.Forget(ok.ID)
	_, found = jm.CurrentFor("cow")
	assert.False(t, found)

	bad, err := jm.StartJob("cow", "eat", func(context.Context) error { return errors.New("no grass") })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return jobStatus(jm, bad.ID) == JobStatusFailed }, time.Second, time.Millisecond)
	job, _ := jm.GetJob(bad.ID)
	assert.Equal(t, "no grass", job.Error)
}

func TestJobManagerCancel(t *testing.T) {
	jm := NewJobManager()
	stopped := make(chan struct{})
	job, err := jm.StartJob("sheep", "eat", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	require.NoError(t, err)

	assert.True(t, jm.Cancel(job.ID))
	assert.False(t, jm.Cancel(job.ID))
	assert.False(t, jm.Cancel("missing"))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, JobStatusCancelled, jobStatus(jm, job.ID))
}

func TestJobManagerOwnersAreIndependent(t *testing.T) {
	jm := NewJobManager()
	block := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	_, err := jm.StartJob("a", "eat", block)
	require.NoError(t, err)
	_, err = jm.StartJob("b", "eat", block)
	require.NoError(t, err)

	jm.CancelAll()
	a, _ := jm.CurrentFor("a")
	b, _ := jm.CurrentFor("b")
	assert.Equal(t, JobStatusCancelled, a.Status)
	assert.Equal(t, JobStatusCancelled, b.Status)
}

func TestJobManagerForgetRunningCancels(t *testing.T) {
	jm := NewJobManager()
	done := make(chan struct{})
	job, err := jm.StartJob("goat", "eat", func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return nil
	})
	require.NoError(t, err)

	jm.Forget(job.ID)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forgotten job kept running")
	}
	_, found := jm.GetJob(job.ID)
	assert.False(t, found)
}
