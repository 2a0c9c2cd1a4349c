package model

import "time"

// AccessSyncJob is one pending grant/revoke that failed against the
// community platform and is waiting to be retried. Jobs describe the desired
// end state, not the failed call, so replaying one is always safe.
type AccessSyncJob struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DiscordID  string    `json:"discord_id"`
	Granted    bool      `json:"granted"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
