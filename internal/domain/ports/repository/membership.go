package repository

import (
	"context"

	"github.com/kungfukitty/project-angeL/internal/domain/model"
)

// MembershipRepository is the port for membership records.
type MembershipRepository interface {
	// Create inserts a new membership. Returns domain.ErrAlreadyExists when a
	// record with the same external subscription id is already stored.
	Create(ctx context.Context, tx Tx, m *model.Membership) error

	// FindByUser returns the most recent membership for a user, canceled ones
	// included. FindActiveByUser restricts to status=active.
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Membership, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Membership, error)
	FindBySubscriptionID(ctx context.Context, tx Tx, subID string) (*model.Membership, error)

	// ApplyTransition atomically moves the membership identified by subID to
	// the target state, but only when seq is newer than the stored
	// last_event_seq. It reports applied=false (and no error) when the guard
	// rejects a stale or duplicate event; that outcome is a successful no-op.
	ApplyTransition(ctx context.Context, tx Tx, subID string, change model.MembershipChange, seq int64) (applied bool, err error)
}
