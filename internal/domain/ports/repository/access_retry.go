package repository

import (
	"context"

	"github.com/kungfukitty/project-angeL/internal/domain/model"
)

// AccessRetryQueue buffers access sync work that could not reach the
// community platform. The webhook path only ever enqueues; a background
// worker drains. Dequeue returns domain.ErrNotFound when the queue is empty.
type AccessRetryQueue interface {
	Enqueue(ctx context.Context, job *model.AccessSyncJob) error
	Dequeue(ctx context.Context) (*model.AccessSyncJob, error)
	Depth(ctx context.Context) (int64, error)
}
