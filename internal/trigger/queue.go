package internal_trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/jjpp222/tutor-aleman-backend/pkg/connectors"
	"github.com/redis/go-redis/v9"
)

// MixQueueKey is the redis list carrying pending mix jobs.
const MixQueueKey = "session:mix:queue"

// MixJob is one pending mix trigger. Attempt counts deliveries so the worker
// can requeue not-ready sessions a bounded number of times.
type MixJob struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Attempt   int    `json:"attempt"`
}

// Queue is the out-of-band trigger channel between the recorder's End and
// the mix worker. Backed by a redis list: LPUSH to enqueue, BRPOP to consume.
type Queue interface {
	// EnqueueMix pushes a first-delivery job for the session.
	EnqueueMix(ctx context.Context, sessionID, userID string) error

	// Requeue pushes the job back with its attempt count advanced.
	Requeue(ctx context.Context, job MixJob) error

	// Dequeue blocks up to the given timeout for the next job. Returns
	// redis.Nil when the wait expires with nothing queued.
	Dequeue(ctx context.Context, timeoutSec int) (*MixJob, error)
}

type redisQueue struct {
	redis  connectors.RedisConnector
	logger commons.Logger
}

func NewQueue(redis connectors.RedisConnector, logger commons.Logger) Queue {
	return &redisQueue{
		redis:  redis,
		logger: logger,
	}
}

func (q *redisQueue) EnqueueMix(ctx context.Context, sessionID, userID string) error {
	return q.push(ctx, MixJob{SessionID: sessionID, UserID: userID, Attempt: 1})
}

func (q *redisQueue) Requeue(ctx context.Context, job MixJob) error {
	job.Attempt++
	return q.push(ctx, job)
}

func (q *redisQueue) push(ctx context.Context, job MixJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal mix job %s: %w", job.SessionID, err)
	}
	if err := q.redis.Client().LPush(ctx, MixQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue mix job %s: %w", job.SessionID, err)
	}

	q.logger.Debugf("enqueued mix job: sessionId=%s, attempt=%d", job.SessionID, job.Attempt)
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context, timeoutSec int) (*MixJob, error) {
	res, err := q.redis.Client().BRPop(ctx, timeoutDuration(timeoutSec), MixQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("dequeue mix job: %w", err)
	}

	// BRPop returns [key, value].
	var job MixJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("malformed mix job payload: %w", err)
	}
	return &job, nil
}

func timeoutDuration(sec int) time.Duration {
	if sec <= 0 {
		sec = 5
	}
	return time.Duration(sec) * time.Second
}
