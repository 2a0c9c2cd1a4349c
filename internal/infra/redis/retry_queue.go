package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
)

const retryQueueKey = "access_sync:retry"

var _ repository.AccessRetryQueue = (*RetryQueue)(nil)

// RetryQueue is a redis-list backed queue of pending access sync jobs.
// LPush/RPop gives FIFO order; jobs are plain JSON so they survive restarts
// and can be inspected with redis-cli.
type RetryQueue struct {
	client RedisClient
}

func NewRetryQueue(client RedisClient) *RetryQueue {
	return &RetryQueue{client: client}
}

func (q *RetryQueue) Enqueue(ctx context.Context, job *model.AccessSyncJob) error {
	if job == nil || job.DiscordID == "" {
		return domain.ErrInvalidArgument
	}
	if job.ID == "" {
		// ulid.Make is safe for concurrent use; Enqueue is called from worker
		// pool goroutines and the retry worker at the same time.
		job.ID = ulid.Make().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, retryQueueKey, b)
}

func (q *RetryQueue) Dequeue(ctx context.Context) (*model.AccessSyncJob, error) {
	s, err := q.client.RPop(ctx, retryQueueKey)
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var job model.AccessSyncJob
	if err := json.Unmarshal([]byte(s), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *RetryQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, retryQueueKey)
}
