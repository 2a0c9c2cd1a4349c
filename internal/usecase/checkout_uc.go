// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	"github.com/kungfukitty/project-angeL/internal/infra/logging"
	"github.com/kungfukitty/project-angeL/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// Initiate starts a subscription checkout with the provider and returns
	// the redirect handle. Users with an active membership are rejected with
	// domain.ErrAlreadySubscribed.
	Initiate(ctx context.Context, userID, priceID, successURL, cancelURL string) (*adapter.CheckoutSession, error)
	// PortalURL returns a billing-portal URL for the user's current
	// membership.
	PortalURL(ctx context.Context, userID, returnURL string) (string, error)
}

type checkoutUC struct {
	users       repository.UserRepository
	memberships repository.MembershipRepository
	gateway     adapter.CheckoutGateway
	log         *zerolog.Logger
}

func NewCheckoutUseCase(users repository.UserRepository, memberships repository.MembershipRepository, gateway adapter.CheckoutGateway, log *zerolog.Logger) *checkoutUC {
	return &checkoutUC{users: users, memberships: memberships, gateway: gateway, log: log}
}

func (uc *checkoutUC) Initiate(ctx context.Context, userID, priceID, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	if priceID == "" || successURL == "" || cancelURL == "" {
		return nil, domain.ErrInvalidArgument
	}

	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	// The no-active-membership read can race a concurrent activation; the
	// reconciliation engine resolves the losing checkout's completion event
	// as a no-op, so no lock is taken here.
	_, err = uc.memberships.FindActiveByUser(ctx, repository.NoTX, user.ID)
	if err == nil {
		metrics.IncCheckout("rejected")
		return nil, domain.ErrAlreadySubscribed
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	sess, err := uc.gateway.CreateSession(ctx, adapter.CheckoutParams{
		PriceID:           priceID,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		CustomerEmail:     user.Email,
		ClientReferenceID: user.ID,
	})
	if err != nil {
		metrics.IncCheckout("error")
		return nil, err
	}

	metrics.IncCheckout("created")
	logging.With(ctx, uc.log).Info().Str("user_id", user.ID).Str("session_id", sess.ID).Msg("checkout session created")
	return sess, nil
}

func (uc *checkoutUC) PortalURL(ctx context.Context, userID, returnURL string) (string, error) {
	m, err := uc.memberships.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return "", err
	}
	if m.ExternalCustomerID == "" {
		return "", domain.ErrNotFound
	}
	return uc.gateway.CreatePortalSession(ctx, m.ExternalCustomerID, returnURL)
}
