// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	"github.com/kungfukitty/project-angeL/internal/infra/logging"
	"github.com/kungfukitty/project-angeL/internal/infra/metrics"
	"github.com/kungfukitty/project-angeL/internal/infra/worker"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase converges local membership state with the payment
// provider's view, one verified event at a time.
//
// Every transition runs through the store's sequence-guarded CAS, so
// redelivered and out-of-order events land as acknowledged no-ops. A non-nil
// error from Process means the event was NOT durably applied and the caller
// should answer non-2xx so the provider redelivers; everything the engine can
// resolve locally (unknown user, stale sequence, duplicate create) is acked.
type ReconcileUseCase interface {
	Process(ctx context.Context, ev model.ProviderEvent) error
}

type reconcileUC struct {
	memberships repository.MembershipRepository
	users       repository.UserRepository
	access      adapter.AccessSyncAdapter
	retries     repository.AccessRetryQueue
	tm          repository.TransactionManager
	pool        *worker.Pool // nil runs access dispatch inline (tests)
	log         *zerolog.Logger
}

func NewReconcileUseCase(
	memberships repository.MembershipRepository,
	users repository.UserRepository,
	access adapter.AccessSyncAdapter,
	retries repository.AccessRetryQueue,
	tm repository.TransactionManager,
	pool *worker.Pool,
	log *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		memberships: memberships,
		users:       users,
		access:      access,
		retries:     retries,
		tm:          tm,
		pool:        pool,
		log:         log,
	}
}

func (uc *reconcileUC) Process(ctx context.Context, ev model.ProviderEvent) error {
	ctx = logging.WithEventID(ctx, ev.EventID())

	switch e := ev.(type) {
	case model.CheckoutCompleted:
		return uc.applyCheckoutCompleted(ctx, e)
	case model.SubscriptionUpdated:
		return uc.applySubscriptionUpdated(ctx, e)
	case model.SubscriptionDeleted:
		return uc.applySubscriptionDeleted(ctx, e)
	case model.UnknownEvent:
		logging.With(ctx, uc.log).Debug().Str("type", e.Type).Msg("ignoring unhandled event type")
		metrics.ObserveWebhookEvent(e.Type, "skipped")
		return nil
	default:
		// unreachable while model.ProviderEvent stays sealed
		return domain.ErrInvalidArgument
	}
}

// applyCheckoutCompleted creates the membership for a freshly completed
// checkout. The correlation identifier embedded at checkout time tells us
// which user the provider is talking about.
func (uc *reconcileUC) applyCheckoutCompleted(ctx context.Context, e model.CheckoutCompleted) error {
	const evType = "checkout.session.completed"
	l := logging.With(logging.WithSubscriptionID(ctx, e.SubscriptionID), uc.log)

	if e.UserID == "" || e.SubscriptionID == "" {
		l.Warn().Msg("checkout event without correlation id or subscription id")
		metrics.ObserveWebhookEvent(evType, "skipped")
		return nil
	}

	user, err := uc.users.FindByID(ctx, repository.NoTX, e.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn().Str("user_id", e.UserID).Msg("checkout event references unknown user")
			metrics.ObserveWebhookEvent(evType, "skipped")
			return nil
		}
		return err
	}

	// Redelivery of a checkout we already recorded: fold into an idempotent
	// activation instead of a duplicate create.
	if _, err := uc.memberships.FindBySubscriptionID(ctx, repository.NoTX, e.SubscriptionID); err == nil {
		change := model.MembershipChange{Status: model.MembershipStatusActive, CurrentPeriodEnd: e.CurrentPeriodEnd}
		return uc.transition(ctx, evType, user, e.SubscriptionID, change, e.Seq())
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	// Admissible checkout race: two sessions were created before either
	// activation landed. The second completion finds an active membership
	// under another subscription id and must be a no-op, not an error.
	if _, err := uc.memberships.FindActiveByUser(ctx, repository.NoTX, user.ID); err == nil {
		l.Info().Msg("user already active under another subscription; treating checkout as no-op")
		metrics.ObserveWebhookEvent(evType, "skipped")
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	m, err := model.NewMembership("", user.ID, e.CustomerID, e.SubscriptionID)
	if err != nil {
		return err
	}
	m.Status = model.MembershipStatusActive
	m.CurrentPeriodEnd = e.CurrentPeriodEnd
	m.LastEventSeq = e.Seq()

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.memberships.Create(ctx, tx, m); err != nil {
			return err
		}
		return uc.users.UpdateMembershipTier(ctx, tx, user.ID, model.TierVIP)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// concurrent delivery won the insert; its transition stands
			l.Info().Msg("membership already created by concurrent delivery")
			metrics.ObserveWebhookEvent(evType, "stale")
			return nil
		}
		return err
	}

	l.Info().Str("membership_id", m.ID).Msg("membership activated")
	metrics.ObserveWebhookEvent(evType, "applied")
	uc.dispatchAccess(ctx, user, true)
	return nil
}

func (uc *reconcileUC) applySubscriptionUpdated(ctx context.Context, e model.SubscriptionUpdated) error {
	const evType = "customer.subscription.updated"

	user, m, err := uc.lookup(ctx, evType, e.SubscriptionID)
	if err != nil || m == nil {
		return err
	}

	cancelAtPeriodEnd := e.CancelAtPeriodEnd
	change := model.MembershipChange{
		Status:            mapProviderStatus(e.Status),
		CurrentPeriodEnd:  e.CurrentPeriodEnd,
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
	}
	return uc.transition(ctx, evType, user, e.SubscriptionID, change, e.Seq())
}

func (uc *reconcileUC) applySubscriptionDeleted(ctx context.Context, e model.SubscriptionDeleted) error {
	const evType = "customer.subscription.deleted"

	user, m, err := uc.lookup(ctx, evType, e.SubscriptionID)
	if err != nil || m == nil {
		return err
	}

	change := model.MembershipChange{Status: model.MembershipStatusCanceled}
	return uc.transition(ctx, evType, user, e.SubscriptionID, change, e.Seq())
}

// lookup resolves the membership and its owner for an event keyed by
// subscription id. A missing membership is acked (nothing local to
// reconcile); in that case both return values are nil.
func (uc *reconcileUC) lookup(ctx context.Context, evType, subID string) (*model.User, *model.Membership, error) {
	l := logging.With(logging.WithSubscriptionID(ctx, subID), uc.log)

	m, err := uc.memberships.FindBySubscriptionID(ctx, repository.NoTX, subID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn().Msg("event references unknown subscription")
			metrics.ObserveWebhookEvent(evType, "skipped")
			return nil, nil, nil
		}
		return nil, nil, err
	}
	user, err := uc.users.FindByID(ctx, repository.NoTX, m.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn().Str("user_id", m.UserID).Msg("membership owner missing")
			metrics.ObserveWebhookEvent(evType, "skipped")
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return user, m, nil
}

// transition applies one sequence-guarded state change and keeps the
// denormalized user tier in lockstep within the same transaction. Access
// sync happens after commit, off the request path.
func (uc *reconcileUC) transition(ctx context.Context, evType string, user *model.User, subID string, change model.MembershipChange, seq int64) error {
	l := logging.With(logging.WithSubscriptionID(ctx, subID), uc.log)

	applied := false
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := uc.memberships.ApplyTransition(ctx, tx, subID, change, seq)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return uc.users.UpdateMembershipTier(ctx, tx, user.ID, model.TierForStatus(change.Status))
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveWebhookEvent(evType, "skipped")
			return nil
		}
		return err
	}
	if !applied {
		l.Debug().Int64("seq", seq).Msg("stale event skipped")
		metrics.ObserveWebhookEvent(evType, "stale")
		return nil
	}

	l.Info().Str("status", string(change.Status)).Int64("seq", seq).Msg("membership transition applied")
	metrics.ObserveWebhookEvent(evType, "applied")

	switch change.Status {
	case model.MembershipStatusActive:
		uc.dispatchAccess(ctx, user, true)
	case model.MembershipStatusPastDue:
		// grace period: access stays granted
	default:
		uc.dispatchAccess(ctx, user, false)
	}
	return nil
}

// dispatchAccess hands the grant/revoke to the worker pool so the webhook
// response never waits on the community platform. Unreachable-platform
// failures land in the retry queue; anything else is logged and dropped.
func (uc *reconcileUC) dispatchAccess(ctx context.Context, user *model.User, granted bool) {
	if !user.HasDiscord() {
		logging.With(ctx, uc.log).Debug().Str("user_id", user.ID).Msg("no discord link; skipping access sync")
		return
	}
	discordID := *user.DiscordID
	userID := user.ID

	task := func(tctx context.Context) error {
		err := uc.access.SetAccess(tctx, discordID, granted)
		if err == nil {
			metrics.ObserveAccessSync(granted, "ok")
			return nil
		}
		metrics.ObserveAccessSync(granted, "error")
		if errors.Is(err, domain.ErrDownstreamUnavailable) {
			job := &model.AccessSyncJob{UserID: userID, DiscordID: discordID, Granted: granted, Attempts: 1}
			if qerr := uc.retries.Enqueue(tctx, job); qerr != nil {
				uc.log.Error().Err(qerr).Str("user_id", userID).Msg("failed to queue access sync retry")
				return qerr
			}
			uc.log.Warn().Str("user_id", userID).Bool("granted", granted).Msg("access sync queued for retry")
			return nil
		}
		uc.log.Error().Err(err).Str("user_id", userID).Bool("granted", granted).Msg("access sync failed")
		return nil
	}

	if uc.pool == nil {
		_ = task(ctx)
		return
	}
	if err := uc.pool.Submit(task); err != nil {
		// pool saturated; skip straight to the retry queue
		job := &model.AccessSyncJob{UserID: userID, DiscordID: discordID, Granted: granted}
		if qerr := uc.retries.Enqueue(ctx, job); qerr != nil {
			uc.log.Error().Err(qerr).Str("user_id", userID).Msg("failed to queue access sync retry")
		}
	}
}

// mapProviderStatus folds the provider's subscription status vocabulary onto
// the four local membership states. Anything that is neither active-family
// nor incomplete is treated as canceled.
func mapProviderStatus(s string) model.MembershipStatus {
	switch s {
	case "active", "trialing":
		return model.MembershipStatusActive
	case "past_due":
		return model.MembershipStatusPastDue
	case "incomplete":
		return model.MembershipStatusIncomplete
	default:
		return model.MembershipStatusCanceled
	}
}
