package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int32
	block chan struct{}
	err   error
}

func (c *countingSweeper) SweepAutoApprovals(ctx context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.block != nil {
		<-c.block
	}
	return 1, c.err
}

func TestInvalidSchedule(t *testing.T) {
	_, err := New("every minute please", &countingSweeper{})
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New("@every 1h", sw)
	require.NoError(t, err)
	s.RunOnce()
	assert.Equal(t, int32(1), atomic.LoadInt32(&sw.calls))

	sw.err = errors.New("mongo down")
	s.RunOnce()
	assert.Equal(t, int32(2), atomic.LoadInt32(&sw.calls))
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	sw := &countingSweeper{block: make(chan struct{})}
	s, err := New("@every 1h", sw)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.RunOnce()
		close(done)
	}()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&sw.calls) == 1 }, time.Second, time.Millisecond)

	s.RunOnce()
	assert.Equal(t, int32(1), atomic.LoadInt32(&sw.calls))

	close(sw.block)
	<-done
}

func TestCronFires(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New("@every 1s", sw)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&sw.calls) >= 1 }, 3*time.Second, 50*time.Millisecond)
}
