package internal_trigger

import (
	"context"
	"testing"

	internal_session "github.com/jjpp222/tutor-aleman-backend/internal/session"
)

type fakeQueue struct {
	requeued []MixJob
}

func (f *fakeQueue) EnqueueMix(ctx context.Context, sessionID, userID string) error { return nil }

func (f *fakeQueue) Requeue(ctx context.Context, job MixJob) error {
	job.Attempt++
	f.requeued = append(f.requeued, job)
	return nil
}

func (f *fakeQueue) Dequeue(ctx context.Context, timeoutSec int) (*MixJob, error) {
	return nil, context.Canceled
}

type fakeRunner struct {
	runErr     error
	runs       int
	markFailed []string
}

func (f *fakeRunner) Run(ctx context.Context, sessionID, userID string) error {
	f.runs++
	return f.runErr
}

func (f *fakeRunner) MarkFailed(ctx context.Context, sessionID, userID string) error {
	f.markFailed = append(f.markFailed, sessionID)
	return nil
}

func newTestWorker(t *testing.T, runner *fakeRunner) (*Worker, *fakeQueue) {
	t.Helper()
	queue := &fakeQueue{}
	return &Worker{queue: queue, mixer: runner, logger: newTestLogger(t)}, queue
}

func TestHandleSuccess(t *testing.T) {
	runner := &fakeRunner{}
	worker, queue := newTestWorker(t, runner)

	worker.handle(context.Background(), MixJob{SessionID: "s-1", UserID: "u-1", Attempt: 1})

	if runner.runs != 1 {
		t.Fatalf("expected 1 run, got %d", runner.runs)
	}
	if len(queue.requeued) != 0 || len(runner.markFailed) != 0 {
		t.Errorf("expected no requeue or failure marking")
	}
}

func TestHandleNotReadyRequeues(t *testing.T) {
	runner := &fakeRunner{runErr: &internal_session.ArtifactNotReadyError{Tracks: []string{internal_session.TrackUser}}}
	worker, queue := newTestWorker(t, runner)

	worker.handle(context.Background(), MixJob{SessionID: "s-1", UserID: "u-1", Attempt: 1})

	if len(queue.requeued) != 1 {
		t.Fatalf("expected 1 requeue, got %d", len(queue.requeued))
	}
	if queue.requeued[0].Attempt != 2 {
		t.Errorf("expected attempt advanced to 2, got %d", queue.requeued[0].Attempt)
	}
	if len(runner.markFailed) != 0 {
		t.Errorf("expected session not marked failed while deliveries remain")
	}
}

func TestHandleNotReadyExhaustedMarksFailed(t *testing.T) {
	runner := &fakeRunner{runErr: &internal_session.ArtifactNotReadyError{Tracks: []string{internal_session.TrackBot}}}
	worker, queue := newTestWorker(t, runner)

	worker.handle(context.Background(), MixJob{SessionID: "s-1", UserID: "u-1", Attempt: MaxDeliveries})

	if len(queue.requeued) != 0 {
		t.Errorf("expected no requeue past the delivery bound")
	}
	if len(runner.markFailed) != 1 || runner.markFailed[0] != "s-1" {
		t.Errorf("expected session marked failed, got %v", runner.markFailed)
	}
}

func TestHandleTerminalErrorMarksFailed(t *testing.T) {
	runner := &fakeRunner{runErr: internal_session.ErrMixFailed}
	worker, queue := newTestWorker(t, runner)

	worker.handle(context.Background(), MixJob{SessionID: "s-1", UserID: "u-1", Attempt: 1})

	if len(queue.requeued) != 0 {
		t.Errorf("mix failures must not be redelivered")
	}
	if len(runner.markFailed) != 1 {
		t.Errorf("expected session marked failed")
	}
}
