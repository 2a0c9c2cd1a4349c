package model

import "time"

// ProviderEvent is the closed set of payment-provider notifications the
// reconciliation engine understands. The unexported marker method keeps the
// set sealed: adding a variant forces every type switch over ProviderEvent
// to be revisited.
type ProviderEvent interface {
	// EventID is the provider-assigned identifier, used for logging only.
	EventID() string
	// Seq orders events for the same subscription (provider created time,
	// unix seconds). Stale sequences are acked and skipped.
	Seq() int64

	providerEvent()
}

// CheckoutCompleted signals that a checkout session finished and a new
// subscription exists. UserID is the correlation identifier embedded at
// checkout time and echoed back by the provider.
type CheckoutCompleted struct {
	ID               string
	Sequence         int64
	UserID           string
	CustomerID       string
	SubscriptionID   string
	CurrentPeriodEnd *time.Time
}

// SubscriptionUpdated carries the provider's current view of a subscription.
type SubscriptionUpdated struct {
	ID                string
	Sequence          int64
	SubscriptionID    string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// SubscriptionDeleted signals the subscription ended; the membership becomes
// canceled unconditionally.
type SubscriptionDeleted struct {
	ID             string
	Sequence       int64
	SubscriptionID string
}

// UnknownEvent is a verified event of a type the engine does not reconcile.
// It is acknowledged and skipped.
type UnknownEvent struct {
	ID       string
	Sequence int64
	Type     string
}

func (e CheckoutCompleted) EventID() string   { return e.ID }
func (e CheckoutCompleted) Seq() int64        { return e.Sequence }
func (e CheckoutCompleted) providerEvent()    {}
func (e SubscriptionUpdated) EventID() string { return e.ID }
func (e SubscriptionUpdated) Seq() int64      { return e.Sequence }
func (e SubscriptionUpdated) providerEvent()  {}
func (e SubscriptionDeleted) EventID() string { return e.ID }
func (e SubscriptionDeleted) Seq() int64      { return e.Sequence }
func (e SubscriptionDeleted) providerEvent()  {}
func (e UnknownEvent) EventID() string        { return e.ID }
func (e UnknownEvent) Seq() int64             { return e.Sequence }
func (e UnknownEvent) providerEvent()         {}
