package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gizilens/backend/internal/logger"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestWorker_RunsImmediatelyAndOnTicks(t *testing.T) {
	purger := &countingPurger{}
	w := NewWorker(purger, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_KeepsRunningAfterErrors(t *testing.T) {
	purger := &countingPurger{err: errors.New("db down")}
	w := NewWorker(purger, 5*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestWorker_DisabledWithZeroInterval(t *testing.T) {
	purger := &countingPurger{}
	w := NewWorker(purger, 0, logger.Discard())

	w.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	assert.Zero(t, purger.calls.Load())
}
