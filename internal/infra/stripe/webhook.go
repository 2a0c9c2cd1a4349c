package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
)

// SignatureHeader is the provider header carrying the signed timestamp and
// one or more HMAC signatures, e.g. "t=1700000000,v1=5257a8...".
const SignatureHeader = "Stripe-Signature"

// VerifySignature authenticates a raw webhook payload against the shared
// endpoint secret. The signed payload is "<timestamp>.<body>" and the
// comparison is constant-time. Timestamps outside the tolerance window are
// rejected to blunt replay of captured deliveries.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	at := time.Unix(ts, 0)
	if at.Before(now.Add(-tolerance)) || at.After(now.Add(tolerance)) {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrVerificationFailed)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", domain.ErrVerificationFailed)
}

func parseSignatureHeader(header string) (ts int64, sigs []string, err error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", domain.ErrVerificationFailed)
	}
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err = strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", domain.ErrVerificationFailed)
			}
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", domain.ErrVerificationFailed)
	}
	return ts, sigs, nil
}

// event mirrors the provider envelope; only the fields the engine consumes
// are decoded.
type event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object eventObject `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
}

// ParseEvent decodes a verified payload into one of the sealed
// model.ProviderEvent variants. Event types the engine does not reconcile
// come back as model.UnknownEvent so the endpoint can ack them.
func ParseEvent(payload []byte) (model.ProviderEvent, error) {
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", domain.ErrVerificationFailed)
	}

	switch ev.Type {
	case "checkout.session.completed":
		userID := ev.Data.Object.ClientReferenceID
		if userID == "" {
			userID = ev.Data.Object.Metadata["userId"]
		}
		return model.CheckoutCompleted{
			ID:               ev.ID,
			Sequence:         ev.Created,
			UserID:           userID,
			CustomerID:       ev.Data.Object.Customer,
			SubscriptionID:   ev.Data.Object.Subscription,
			CurrentPeriodEnd: unixPtr(ev.Data.Object.CurrentPeriodEnd),
		}, nil
	case "customer.subscription.updated":
		return model.SubscriptionUpdated{
			ID:                ev.ID,
			Sequence:          ev.Created,
			SubscriptionID:    ev.Data.Object.ID,
			Status:            ev.Data.Object.Status,
			CurrentPeriodEnd:  unixPtr(ev.Data.Object.CurrentPeriodEnd),
			CancelAtPeriodEnd: ev.Data.Object.CancelAtPeriodEnd,
		}, nil
	case "customer.subscription.deleted":
		return model.SubscriptionDeleted{
			ID:             ev.ID,
			Sequence:       ev.Created,
			SubscriptionID: ev.Data.Object.ID,
		}, nil
	default:
		return model.UnknownEvent{ID: ev.ID, Sequence: ev.Created, Type: ev.Type}, nil
	}
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
