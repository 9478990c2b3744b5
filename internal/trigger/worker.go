package internal_trigger

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	internal_mixer "github.com/jjpp222/tutor-aleman-backend/internal/mixer"
	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
)

// MaxDeliveries bounds how often a not-ready session is redelivered before
// the worker gives up and marks it failed.
const MaxDeliveries = 3

// mixRunner is the slice of the mixer the worker drives.
type mixRunner interface {
	Run(ctx context.Context, sessionID, userID string) error
	MarkFailed(ctx context.Context, sessionID, userID string) error
}

// Worker consumes mix jobs and drives the mixer. One worker loop per
// process; distinct sessions never share scratch state, so a single consumer
// is enough and avoids concurrent duplicate runs for the same session.
type Worker struct {
	queue  Queue
	mixer  mixRunner
	logger commons.Logger
}

func NewWorker(queue Queue, mixer *internal_mixer.Mixer, logger commons.Logger) *Worker {
	return &Worker{
		queue:  queue,
		mixer:  mixer,
		logger: logger,
	}
}

// Run blocks consuming jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("mix worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("mix worker stopped")
			return
		}

		job, err := w.queue.Dequeue(ctx, 5)
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Errorf("mix queue dequeue: %v", err)
			continue
		}

		w.handle(ctx, *job)
	}
}

// handle runs one delivery. ArtifactNotReady is the only redelivered
// failure: the client's audio upload may still be in flight, so the job goes
// back on the queue up to MaxDeliveries. Everything else is terminal for the
// session.
func (w *Worker) handle(ctx context.Context, job MixJob) {
	err := w.mixer.Run(ctx, job.SessionID, job.UserID)
	if err == nil {
		return
	}

	if errors.Is(err, internal_session.ErrArtifactNotReady) && job.Attempt < MaxDeliveries {
		w.logger.Warnf("mix job not ready (attempt %d/%d), requeueing: sessionId=%s: %v",
			job.Attempt, MaxDeliveries, job.SessionID, err)
		if qErr := w.queue.Requeue(ctx, job); qErr != nil {
			w.logger.Errorf("requeue mix job %s: %v", job.SessionID, qErr)
		}
		return
	}

	w.logger.Errorf("mix job failed terminally: sessionId=%s, attempt=%d: %v",
		job.SessionID, job.Attempt, err)
	if mErr := w.mixer.MarkFailed(ctx, job.SessionID, job.UserID); mErr != nil {
		w.logger.Errorf("mark session %s failed: %v", job.SessionID, mErr)
	}
}
