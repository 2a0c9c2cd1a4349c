package adapter

import "context"

// AccessSyncAdapter grants or revokes the community-platform role backing a
// membership. Implementations MUST be idempotent: granting an
// already-granted role or revoking an absent one is a successful no-op,
// because the engine may retry the same logical transition after a partial
// failure. Failures map to domain.ErrDownstreamUnavailable and are never
// fatal to membership persistence.
type AccessSyncAdapter interface {
	Name() string
	SetAccess(ctx context.Context, platformUserID string, granted bool) error
	// CreateInvite returns a short-lived single-use invite URL to the
	// community server.
	CreateInvite(ctx context.Context) (string, error)
}
