//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/usecase"
)

func TestCommunity_LinkDiscord(t *testing.T) {
	ctx := context.Background()

	newFixture := func(t *testing.T) (*memUserRepo, *memMembershipRepo, *MockAccessAdapter, usecase.CommunityUseCase) {
		t.Helper()
		users := newMemUserRepo()
		mems := newMemMembershipRepo()
		access := &MockAccessAdapter{}
		uc := usecase.NewCommunityUseCase(users, mems, access, newTestLogger())
		return users, mems, access, uc
	}

	t.Run("links account", func(t *testing.T) {
		users, _, access, uc := newFixture(t)
		u, _ := model.NewUser("user-1", "kitty@example.com", "Kitty")
		_ = users.Save(ctx, nil, u)

		out, err := uc.LinkDiscord(ctx, "user-1", "discord-1")
		if err != nil {
			t.Fatalf("LinkDiscord: %v", err)
		}
		if !out.HasDiscord() || *out.DiscordID != "discord-1" {
			t.Errorf("discord id not stored: %+v", out)
		}
		// free member, no role grant
		if calls := access.calls(); len(calls) != 0 {
			t.Errorf("access calls = %+v, want none", calls)
		}
	})

	t.Run("grants role when member is access eligible", func(t *testing.T) {
		users, mems, access, uc := newFixture(t)
		u, _ := model.NewUser("user-1", "kitty@example.com", "Kitty")
		u.MembershipTier = model.TierVIP
		_ = users.Save(ctx, nil, u)
		m, _ := model.NewMembership("", "user-1", "cus_1", "sub-1")
		m.Status = model.MembershipStatusActive
		_ = mems.Create(ctx, nil, m)

		if _, err := uc.LinkDiscord(ctx, "user-1", "discord-1"); err != nil {
			t.Fatalf("LinkDiscord: %v", err)
		}
		calls := access.calls()
		if len(calls) != 1 || !calls[0].Granted {
			t.Errorf("access calls = %+v, want one grant", calls)
		}
	})

	t.Run("role grant failure does not fail the link", func(t *testing.T) {
		users, mems, access, uc := newFixture(t)
		u, _ := model.NewUser("user-1", "kitty@example.com", "Kitty")
		_ = users.Save(ctx, nil, u)
		m, _ := model.NewMembership("", "user-1", "cus_1", "sub-1")
		m.Status = model.MembershipStatusActive
		_ = mems.Create(ctx, nil, m)
		access.SetAccessFunc = func(ctx context.Context, discordID string, granted bool) error {
			return domain.ErrDownstreamUnavailable
		}

		out, err := uc.LinkDiscord(ctx, "user-1", "discord-1")
		if err != nil {
			t.Fatalf("LinkDiscord: %v", err)
		}
		if !out.HasDiscord() {
			t.Error("link not persisted despite grant failure")
		}
	})

	t.Run("rejects discord id linked to another user", func(t *testing.T) {
		users, _, _, uc := newFixture(t)
		a, _ := model.NewUser("user-a", "a@example.com", "A")
		b, _ := model.NewUser("user-b", "b@example.com", "B")
		_ = users.Save(ctx, nil, a)
		_ = users.Save(ctx, nil, b)
		if _, err := uc.LinkDiscord(ctx, "user-a", "discord-1"); err != nil {
			t.Fatalf("first link: %v", err)
		}

		_, err := uc.LinkDiscord(ctx, "user-b", "discord-1")
		if !errors.Is(err, domain.ErrDiscordAlreadyLinked) {
			t.Errorf("err = %v, want ErrDiscordAlreadyLinked", err)
		}
	})

	t.Run("relink by the same user is allowed", func(t *testing.T) {
		users, _, _, uc := newFixture(t)
		u, _ := model.NewUser("user-1", "kitty@example.com", "Kitty")
		_ = users.Save(ctx, nil, u)
		if _, err := uc.LinkDiscord(ctx, "user-1", "discord-1"); err != nil {
			t.Fatalf("first link: %v", err)
		}
		if _, err := uc.LinkDiscord(ctx, "user-1", "discord-1"); err != nil {
			t.Errorf("relink: %v", err)
		}
	})

	t.Run("empty discord id", func(t *testing.T) {
		_, _, _, uc := newFixture(t)
		_, err := uc.LinkDiscord(ctx, "user-1", "")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestCommunity_Invite(t *testing.T) {
	users := newMemUserRepo()
	mems := newMemMembershipRepo()
	access := &MockAccessAdapter{}
	uc := usecase.NewCommunityUseCase(users, mems, access, newTestLogger())

	url, err := uc.Invite(context.Background())
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if url != "https://discord.gg/test" {
		t.Errorf("url = %q", url)
	}
}
