// File: internal/usecase/community_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	"github.com/kungfukitty/project-angeL/internal/infra/logging"
)

// Compile-time check
var _ CommunityUseCase = (*communityUC)(nil)

type CommunityUseCase interface {
	// LinkDiscord binds a Discord account to the user and, when the user
	// already holds an access-eligible membership, grants the role right
	// away.
	LinkDiscord(ctx context.Context, userID, discordID string) (*model.User, error)
	Invite(ctx context.Context) (string, error)
}

type communityUC struct {
	users       repository.UserRepository
	memberships repository.MembershipRepository
	access      adapter.AccessSyncAdapter
	log         *zerolog.Logger
}

func NewCommunityUseCase(users repository.UserRepository, memberships repository.MembershipRepository, access adapter.AccessSyncAdapter, log *zerolog.Logger) *communityUC {
	return &communityUC{users: users, memberships: memberships, access: access, log: log}
}

func (uc *communityUC) LinkDiscord(ctx context.Context, userID, discordID string) (*model.User, error) {
	if discordID == "" {
		return nil, domain.ErrInvalidArgument
	}

	if existing, err := uc.users.FindByDiscordID(ctx, repository.NoTX, discordID); err == nil {
		if existing.ID != userID {
			return nil, domain.ErrDiscordAlreadyLinked
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := uc.users.UpdateDiscordID(ctx, repository.NoTX, userID, discordID); err != nil {
		return nil, err
	}
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	// Best effort: a member who is already access-eligible gets the role on
	// link. Failures are left to the retry machinery driven by the next
	// membership event rather than failing the link.
	if m, err := uc.memberships.FindByUser(ctx, repository.NoTX, userID); err == nil && m.AccessEligible() {
		if err := uc.access.SetAccess(ctx, discordID, true); err != nil {
			logging.With(ctx, uc.log).Warn().Err(err).Str("user_id", userID).Msg("role grant on discord link failed")
		}
	}
	return user, nil
}

func (uc *communityUC) Invite(ctx context.Context) (string, error) {
	return uc.access.CreateInvite(ctx)
}
