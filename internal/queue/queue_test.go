package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/storage/memory"
)

func newTestQueue() *Queue {
	return NewQueue(memory.New(), common.GetLogger())
}

func TestPushPopRoundTrip(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	job := models.NewJob("fundamentus", "PETR4", models.PriorityNormal)
	require.NoError(t, q.Push(ctx, job))

	popped, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, popped.ID)
	assert.Equal(t, "fundamentus", popped.ScraperName)
	assert.Equal(t, "PETR4", popped.Target)
	assert.Equal(t, models.JobStatusPending, popped.Status)
}

func TestPopEmptyReturnsErrNoJob(t *testing.T) {
	q := newTestQueue()

	_, err := q.Pop(context.Background())
	assert.ErrorIs(t, err, models.ErrNoJob)
}

func TestPopStrictPriorityOrder(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	low := models.NewJob("brapi", "VALE3", models.PriorityLow)
	normal := models.NewJob("brapi", "VALE3", models.PriorityNormal)
	high := models.NewJob("brapi", "VALE3", models.PriorityHigh)

	// Enqueued low first, high last; pop order must still be
	// high, normal, low.
	require.NoError(t, q.Push(ctx, low))
	require.NoError(t, q.Push(ctx, normal))
	require.NoError(t, q.Push(ctx, high))

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, high.ID, first.ID)

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, normal.ID, second.ID)

	third, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, low.ID, third.ID)

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, models.ErrNoJob)
}

func TestSamePriorityIsFIFO(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	first := models.NewJob("brapi", "ITUB4", models.PriorityNormal)
	second := models.NewJob("brapi", "BBDC4", models.PriorityNormal)
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))

	popped, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, popped.ID)
}

func TestCancelledJobNeverPopped(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	cancelled := models.NewJob("fundamentus", "PETR4", models.PriorityHigh)
	survivor := models.NewJob("fundamentus", "VALE3", models.PriorityHigh)
	require.NoError(t, q.Push(ctx, cancelled))
	require.NoError(t, q.Push(ctx, survivor))

	require.NoError(t, q.Cancel(ctx, cancelled.ID))

	status, err := q.GetStatus(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, status)

	popped, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, survivor.ID, popped.ID)

	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, models.ErrNoJob)
}

func TestCancelTerminalJobFails(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	job := models.NewJob("brapi", "PETR4", models.PriorityNormal)
	require.NoError(t, q.Push(ctx, job))
	require.NoError(t, q.UpdateStatus(ctx, job.ID, models.JobStatusCompleted))

	assert.Error(t, q.Cancel(ctx, job.ID))
}

func TestUpdateStatusRecordsTimestamps(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	job := models.NewJob("brapi", "PETR4", models.PriorityNormal)
	require.NoError(t, q.Push(ctx, job))

	require.NoError(t, q.UpdateStatus(ctx, job.ID, models.JobStatusRunning))
	running, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, running.Status)
	require.NotNil(t, running.StartedAt)

	require.NoError(t, q.UpdateStatus(ctx, job.ID, models.JobStatusCompleted))
	done, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	// terminal status is frozen
	assert.Error(t, q.UpdateStatus(ctx, job.ID, models.JobStatusRunning))
}

func TestGetStatusUnknownJob(t *testing.T) {
	q := newTestQueue()

	_, err := q.GetStatus(context.Background(), "missing-id")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestLengths(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, models.NewJob("a", "T1", models.PriorityHigh)))
	require.NoError(t, q.Push(ctx, models.NewJob("a", "T2", models.PriorityNormal)))
	require.NoError(t, q.Push(ctx, models.NewJob("a", "T3", models.PriorityNormal)))
	require.NoError(t, q.Push(ctx, models.NewJob("a", "T4", models.PriorityLow)))

	lengths, err := q.Lengths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lengths.High)
	assert.Equal(t, int64(2), lengths.Normal)
	assert.Equal(t, int64(1), lengths.Low)
}
