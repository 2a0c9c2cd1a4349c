package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrAlreadySubscribed     = errors.New("user already has an active membership")
	ErrDiscordAlreadyLinked  = errors.New("discord account already linked to another user")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrVerificationFailed    = errors.New("event verification failed")
	ErrDownstreamUnavailable = errors.New("downstream collaborator unavailable")

	// Persistence-layer errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
