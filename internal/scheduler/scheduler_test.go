package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJob_RejectsBadCron(t *testing.T) {
	s := New(slog.Default())
	err := s.AddJob(Job{Name: "bad", Cron: "not a cron", Run: func(context.Context) error { return nil }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a cron")
}

func TestAddJob_ComputesNextRun(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.AddJob(Job{Name: "prune", Cron: "*/5 * * * *", Run: func(context.Context) error { return nil }}))

	next := s.NextRun("prune")
	assert.False(t, next.IsZero())
	assert.True(t, next.After(time.Now().UTC().Add(-time.Minute)))

	assert.True(t, s.NextRun("missing").IsZero())
}

func TestTick_RunsDueJobsOnce(t *testing.T) {
	s := New(slog.Default())
	var calls atomic.Int32
	require.NoError(t, s.AddJob(Job{Name: "vacuum", Cron: "0 3 * * *", Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))

	// Force the job to be due, then tick twice: the second tick must see a
	// recomputed future next-run and do nothing.
	s.jobs[0].nextRun = time.Now().UTC().Add(-time.Minute)
	s.tick(context.Background())
	s.tick(context.Background())

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, s.NextRun("vacuum").After(time.Now().UTC()))
}

func TestTick_JobErrorDoesNotStopOthers(t *testing.T) {
	s := New(slog.Default())
	var ran atomic.Bool
	require.NoError(t, s.AddJob(Job{Name: "failing", Cron: "* * * * *", Run: func(context.Context) error {
		return errors.New("disk full")
	}}))
	require.NoError(t, s.AddJob(Job{Name: "ok", Cron: "* * * * *", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}}))

	past := time.Now().UTC().Add(-time.Minute)
	s.jobs[0].nextRun = past
	s.jobs[1].nextRun = past
	s.tick(context.Background())

	assert.True(t, ran.Load())
}

func TestStartStop(t *testing.T) {
	s := New(slog.Default())
	require.NoError(t, s.AddJob(Job{Name: "noop", Cron: "* * * * *", Run: func(context.Context) error { return nil }}))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "double start must fail")
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stop is idempotent")
}
