package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	var fast, failing, disabled atomic.Int32
	jobs := []Job{
		{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		{Name: "failing", Interval: time.Hour, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("boom")
		}},
		{Name: "disabled", Run: func(context.Context) error {
			disabled.Add(1)
			return nil
		}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := NewScheduler(jobs, time.Second, logger).Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, fast.Load(), int32(2))
	assert.Equal(t, int32(1), failing.Load())
	assert.Equal(t, int32(0), disabled.Load())
}

func TestScheduler_AppliesRunTimeout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	deadlineSeen := make(chan bool, 1)
	jobs := []Job{{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadlineSeen <- ok
		<-ctx.Done()
		return ctx.Err()
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewScheduler(jobs, 20*time.Millisecond, logger).Start(ctx) }()

	assert.True(t, <-deadlineSeen)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
