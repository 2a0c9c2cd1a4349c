package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
)

var _ adapter.AccessSyncAdapter = (*AccessAdapter)(nil)

// AccessAdapter implements adapter.AccessSyncAdapter over the Discord REST
// API. Role add/remove are idempotent on the provider side (adding a role a
// member already holds returns success), which is what lets the engine
// re-dispatch the same logical transition safely.
type AccessAdapter struct {
	token           string
	guildID         string
	vipRoleID       string
	inviteChannelID string
	baseURL         string
	client          *http.Client
}

func NewAccessAdapter(token, guildID, vipRoleID, inviteChannelID, baseURL string) (*AccessAdapter, error) {
	if token == "" || guildID == "" || vipRoleID == "" {
		return nil, errors.New("discord token, guild id and role id are required")
	}
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	return &AccessAdapter{
		token:           token,
		guildID:         guildID,
		vipRoleID:       vipRoleID,
		inviteChannelID: inviteChannelID,
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *AccessAdapter) Name() string { return "discord" }

// SetAccess grants or revokes the VIP role for a guild member. Revoking for
// an unknown member is a no-op success: the desired end state already holds.
func (a *AccessAdapter) SetAccess(ctx context.Context, discordID string, granted bool) error {
	if discordID == "" {
		return domain.ErrInvalidArgument
	}
	method := http.MethodDelete
	if granted {
		method = http.MethodPut
	}
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", a.guildID, discordID, a.vipRoleID)

	status, err := a.do(ctx, method, path, nil, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNoContent:
		return nil
	case status == http.StatusNotFound && !granted:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: guild member %s", domain.ErrNotFound, discordID)
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.ErrDownstreamUnavailable
	default:
		return fmt.Errorf("discord role sync failed with status %d", status)
	}
}

// CreateInvite creates a 24h single-use invite to the community channel.
func (a *AccessAdapter) CreateInvite(ctx context.Context) (string, error) {
	if a.inviteChannelID == "" {
		return "", domain.ErrInvalidArgument
	}
	body := map[string]int{"max_age": 86400, "max_uses": 1}
	var out struct {
		Code string `json:"code"`
	}
	status, err := a.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/invites", a.inviteChannelID), body, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || out.Code == "" {
		if status == http.StatusTooManyRequests || status >= 500 {
			return "", domain.ErrDownstreamUnavailable
		}
		return "", fmt.Errorf("discord invite failed with status %d", status)
	}
	return "https://discord.gg/" + out.Code, nil
}

func (a *AccessAdapter) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bot "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
