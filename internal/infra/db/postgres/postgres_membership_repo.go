package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
)

// Ensure membershipRepo implements repository.MembershipRepository
var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipColumns = `id, user_id, external_customer_id, external_subscription_id, tier, status, current_period_end, cancel_at_period_end, last_event_seq, created_at, updated_at`

func (r *membershipRepo) Create(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (
  id, user_id, external_customer_id, external_subscription_id, tier, status, current_period_end, cancel_at_period_end, last_event_seq, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.UserID, m.ExternalCustomerID, m.ExternalSubscriptionID, m.Tier, m.Status,
		m.CurrentPeriodEnd, m.CancelAtPeriodEnd, m.LastEventSeq, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *membershipRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *membershipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id=$1 AND status='active' LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *membershipRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subID string) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE external_subscription_id=$1;`
	return r.queryOne(ctx, tx, q, subID)
}

// ApplyTransition is the single atomic compare-and-swap guarding the state
// machine: the UPDATE only lands when seq is newer than the stored
// last_event_seq and the membership is not terminal, so a redelivered or
// out-of-order event cannot roll state back and canceled never resurrects.
// RowsAffected==0 with an existing row means the event was stale.
func (r *membershipRepo) ApplyTransition(ctx context.Context, tx repository.Tx, subID string, change model.MembershipChange, seq int64) (bool, error) {
	const q = `
UPDATE memberships SET
  status=$2,
  current_period_end=COALESCE($3, current_period_end),
  cancel_at_period_end=COALESCE($4, cancel_at_period_end),
  last_event_seq=$5,
  updated_at=NOW()
WHERE external_subscription_id=$1 AND last_event_seq < $5 AND status <> 'canceled';`

	tag, err := execSQL(ctx, r.pool, tx, q, subID, change.Status, change.CurrentPeriodEnd, change.CancelAtPeriodEnd, seq)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// The guard rejected the write: either the row is missing or the stored
	// sequence is already newer. The re-check reads through the caller's tx so
	// it sees the same snapshot the UPDATE did.
	if _, err := r.FindBySubscriptionID(ctx, tx, subID); err != nil {
		return false, err
	}
	return false, nil
}

func (r *membershipRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Membership, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	m := &model.Membership{}
	err = row.Scan(&m.ID, &m.UserID, &m.ExternalCustomerID, &m.ExternalSubscriptionID, &m.Tier, &m.Status,
		&m.CurrentPeriodEnd, &m.CancelAtPeriodEnd, &m.LastEventSeq, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}
