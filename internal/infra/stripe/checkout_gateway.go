package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*Gateway)(nil)

// Gateway implements adapter.CheckoutGateway against the provider's REST API
// (form-encoded requests, bearer-key auth).
type Gateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewGateway(secretKey, baseURL string) (*Gateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Gateway{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *Gateway) Name() string { return "stripe" }

// CreateSession starts a subscription checkout. The client reference id is
// echoed back in the completed-checkout event and binds the event to the
// initiating user; it is duplicated into metadata for operator visibility.
func (g *Gateway) CreateSession(ctx context.Context, p adapter.CheckoutParams) (*adapter.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("client_reference_id", p.ClientReferenceID)
	form.Set("metadata[userId]", p.ClientReferenceID)
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := g.post(ctx, "/v1/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.URL == "" {
		return nil, domain.ErrDownstreamUnavailable
	}
	return &adapter.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var out struct {
		URL string `json:"url"`
	}
	if err := g.post(ctx, "/v1/billing_portal/sessions", form, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", domain.ErrDownstreamUnavailable
	}
	return out.URL, nil
}

func (g *Gateway) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domain.ErrDownstreamUnavailable
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("stripe: %s (status %d)", apiErr.Error.Message, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
