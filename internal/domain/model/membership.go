package model

import (
	"time"

	"github.com/kungfukitty/project-angeL/internal/domain"

	"github.com/google/uuid"
)

type MembershipStatus string

const (
	MembershipStatusIncomplete MembershipStatus = "incomplete"
	MembershipStatusActive     MembershipStatus = "active"
	MembershipStatusPastDue    MembershipStatus = "past_due"
	MembershipStatusCanceled   MembershipStatus = "canceled"
)

// Membership is the durable record of a user's paid membership. At most one
// membership per user may be active at a time. ExternalSubscriptionID is
// unique across all memberships and never changes once set; canceled records
// are kept for history rather than deleted.
type Membership struct {
	ID                     string
	UserID                 string
	ExternalCustomerID     string
	ExternalSubscriptionID string
	Tier                   MembershipTier
	Status                 MembershipStatus
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	// LastEventSeq is the provider timestamp of the last applied event.
	// Transitions carrying an older or equal sequence are no-ops.
	LastEventSeq int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewMembership(id, userID, customerID, subscriptionID string) (*Membership, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if userID == "" || subscriptionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Membership{
		ID:                     id,
		UserID:                 userID,
		ExternalCustomerID:     customerID,
		ExternalSubscriptionID: subscriptionID,
		Tier:                   TierVIP,
		Status:                 MembershipStatusIncomplete,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// AccessEligible reports whether community access should be granted for this
// membership. past_due keeps access as a grace period; that is a product
// decision, not an oversight.
func (m *Membership) AccessEligible() bool {
	return m != nil && (m.Status == MembershipStatusActive || m.Status == MembershipStatusPastDue)
}

// Terminal reports whether the membership can never transition again under
// its subscription identifier. A new checkout creates a new record.
func (m *Membership) Terminal() bool {
	return m != nil && m.Status == MembershipStatusCanceled
}

// TierForStatus maps a membership status to the denormalized user tier.
func TierForStatus(s MembershipStatus) MembershipTier {
	if s == MembershipStatusActive || s == MembershipStatusPastDue {
		return TierVIP
	}
	return TierFree
}

// MembershipChange describes the target state of one reconciliation
// transition. Nil pointer fields leave the stored value untouched.
type MembershipChange struct {
	Status            MembershipStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd *bool
}
