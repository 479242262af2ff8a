package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunNowHandleCoalesces(t *testing.T) {
	handle, recv := NewRunNowHandle()
	handle.RunNow()
	handle.RunNow() // second signal while the first is still pending: no-op
	handle.RunNow()

	assert.True(t, recv.Recv(context.Background(), time.Second))
	// only one signal should have been queued
	assert.False(t, recv.Recv(context.Background(), 10*time.Millisecond))
}

func TestRunNowReceiverTimesOut(t *testing.T) {
	_, recv := NewRunNowHandle()
	assert.False(t, recv.Recv(context.Background(), 10*time.Millisecond))
}

func TestRunNowReceiverRespectsCancellation(t *testing.T) {
	_, recv := NewRunNowHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, recv.Recv(ctx, time.Second))
}

type countingTask struct {
	ticks      int
	progressOn int
	errorOn    int
	err        error
}

func (c *countingTask) Name() string { return "counting" }

func (c *countingTask) Tick(ctx context.Context) (bool, error) {
	c.ticks++
	if c.errorOn != 0 && c.ticks == c.errorOn {
		return false, c.err
	}
	return c.ticks <= c.progressOn, nil
}

func TestContinuallyRunNotifiesDownstreamOnProgress(t *testing.T) {
	downstream, downstreamRecv := NewRunNowHandle()
	ct := &countingTask{progressOn: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, recv := NewRunNowHandle()
	done := make(chan struct{})
	go func() {
		ContinuallyRun(ctx, ct, recv, []RunNowHandle{downstream})
		close(done)
	}()

	assert.True(t, downstreamRecv.Recv(context.Background(), time.Second))
	<-done
	assert.GreaterOrEqual(t, ct.ticks, 3)
}
