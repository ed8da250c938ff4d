package cleanup

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type ExpiredSessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Worker periodically deletes expired sessions.
type Worker struct {
	purger   ExpiredSessionPurger
	interval time.Duration
	log      logrus.FieldLogger
}

func NewWorker(purger ExpiredSessionPurger, interval time.Duration, log logrus.FieldLogger) *Worker {
	return &Worker{
		purger:   purger,
		interval: interval,
		log:      log.WithField("component", "cleanup"),
	}
}

// Start runs the worker in the background until ctx is cancelled.
// A non-positive interval disables it.
func (w *Worker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("session cleanup disabled")
		return
	}
	go w.Run(ctx)
	w.log.WithField("interval", w.interval.String()).Info("background worker started")
}

// Run cleans up once immediately, then on every tick, and returns when ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.runCleanup(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("background worker stopped")
			return
		case <-ticker.C:
			w.runCleanup(ctx)
		}
	}
}

func (w *Worker) runCleanup(ctx context.Context) {
	deleted, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Error("error cleaning up expired sessions")
		}
		return
	}
	if deleted > 0 {
		w.log.WithField("deleted", deleted).Info("removed expired sessions from database")
	}
}
