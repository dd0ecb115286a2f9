package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifications struct {
	sweeps    atomic.Int32
	reminders atomic.Int32
	sweepErr  error
	lastNow   atomic.Value
}

func (c *countingNotifications) Sweep(ctx context.Context, now time.Time) (int, error) {
	c.sweeps.Add(1)
	c.lastNow.Store(now)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return 2, c.sweepErr
}

func (c *countingNotifications) RemindDeadlines(ctx context.Context, now time.Time) (int, error) {
	c.reminders.Add(1)
	return 1, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunTicksUntilCancelled(t *testing.T) {
	fake := &countingNotifications{}
	runner := New(fake, quietLogger(), Config{SweepEvery: 5 * time.Millisecond, RemindEvery: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return fake.sweeps.Load() >= 2 && fake.reminders.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunRemindsImmediately(t *testing.T) {
	fake := &countingNotifications{}
	runner := New(fake, quietLogger(), Config{SweepEvery: time.Hour, RemindEvery: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	require.Eventually(t, func() bool { return fake.reminders.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, fake.sweeps.Load())
}

func TestSweepUsesClockAndReportsErrors(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := &countingNotifications{}
	runner := New(fake, quietLogger(), Config{})
	runner.now = func() time.Time { return fixed }

	n, err := runner.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, fixed, fake.lastNow.Load())

	fake.sweepErr = errors.New("db down")
	_, err = runner.Sweep(context.Background())
	assert.EqualError(t, err, "db down")
}
