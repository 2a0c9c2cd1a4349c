package repository

import (
	"context"

	"github.com/kungfukitty/project-angeL/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	FindByDiscordID(ctx context.Context, tx Tx, discordID string) (*model.User, error)

	// UpdateMembershipTier writes the denormalized tier; only the
	// reconciliation engine calls this.
	UpdateMembershipTier(ctx context.Context, tx Tx, userID string, tier model.MembershipTier) error
	UpdateDiscordID(ctx context.Context, tx Tx, userID, discordID string) error
}
