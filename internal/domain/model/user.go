package model

import (
	"strings"
	"time"

	"github.com/kungfukitty/project-angeL/internal/domain"

	"github.com/google/uuid"
)

type MembershipTier string

const (
	TierFree MembershipTier = "free"
	TierVIP  MembershipTier = "vip"
)

// User is a domain entity representing a registered community member.
// MembershipTier is denormalized from the latest membership record and is
// only ever written by the reconciliation engine.
type User struct {
	ID             string
	Email          string
	Name           string
	DiscordID      *string
	MembershipTier MembershipTier
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewUser(id, email, name string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:             id,
		Email:          email,
		Name:           strings.TrimSpace(name),
		MembershipTier: TierFree,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// HasDiscord reports whether the user has linked a Discord account, which is
// a precondition for any access sync.
func (u *User) HasDiscord() bool { return u != nil && u.DiscordID != nil && *u.DiscordID != "" }
