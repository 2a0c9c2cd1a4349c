package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	"github.com/kungfukitty/project-angeL/internal/infra/metrics"
)

// AccessRetryWorker periodically drains the access sync retry queue. It owns
// the "collaborator infrastructure retries" half of the contract: the webhook
// path only ever enqueues, so a dead community platform never slows event
// acknowledgment. Jobs that keep failing are re-queued until maxAttempts,
// then dropped with an error log.
type AccessRetryWorker struct {
	queue       repository.AccessRetryQueue
	access      adapter.AccessSyncAdapter
	interval    time.Duration
	maxAttempts int
	log         *zerolog.Logger
}

func NewAccessRetryWorker(queue repository.AccessRetryQueue, access adapter.AccessSyncAdapter, interval time.Duration, maxAttempts int, log *zerolog.Logger) *AccessRetryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &AccessRetryWorker{queue: queue, access: access, interval: interval, maxAttempts: maxAttempts, log: log}
}

func (w *AccessRetryWorker) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *AccessRetryWorker) tick(ctx context.Context) {
	// Bound each pass by the current depth so permanently failing jobs
	// re-queued behind us do not spin the loop.
	depth, err := w.queue.Depth(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("access-retry: queue depth check failed")
		return
	}
	metrics.SetRetryQueueDepth(depth)

	for i := int64(0); i < depth; i++ {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.log.Error().Err(err).Msg("access-retry: dequeue failed")
			}
			return
		}

		err = w.access.SetAccess(ctx, job.DiscordID, job.Granted)
		if err == nil {
			metrics.ObserveAccessSync(job.Granted, "retried_ok")
			w.log.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Msg("access-retry: sync succeeded")
			continue
		}

		job.Attempts++
		if job.Attempts >= w.maxAttempts || !errors.Is(err, domain.ErrDownstreamUnavailable) {
			metrics.ObserveAccessSync(job.Granted, "dropped")
			w.log.Error().Err(err).Str("job_id", job.ID).Str("user_id", job.UserID).
				Int("attempts", job.Attempts).Msg("access-retry: giving up")
			continue
		}
		if qerr := w.queue.Enqueue(ctx, job); qerr != nil {
			w.log.Error().Err(qerr).Str("job_id", job.ID).Msg("access-retry: re-enqueue failed")
		}
	}

	if depth, err := w.queue.Depth(ctx); err == nil {
		metrics.SetRetryQueueDepth(depth)
	}
}
