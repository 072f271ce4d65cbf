package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New("not a schedule", time.UTC, func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = New("@daily", time.UTC, nil)
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	s, err := New("0 3 * * *", time.UTC, func(context.Context) error { return nil })
	require.NoError(t, err)

	next := s.Next().UTC()
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestRunsJob(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", time.UTC, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return s.Runs() >= 2 }, 5*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, int(calls.Load()), 2)
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	var cancelled atomic.Bool
	s, err := New("@every 1s", time.UTC, func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	require.NoError(t, err)

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	s.Stop()
	assert.True(t, cancelled.Load())
}
