package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/infra/logging"
	"github.com/kungfukitty/project-angeL/internal/infra/metrics"
	"github.com/kungfukitty/project-angeL/internal/infra/stripe"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook is the inbound event endpoint. It answers 200 for everything
// the engine resolved locally, including idempotent no-ops: any non-2xx makes
// the provider redeliver the event, so "already processed" must not look like
// an error. Non-2xx is reserved for verification failures and store faults.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Could not read payload")
		return
	}

	sig := r.Header.Get(stripe.SignatureHeader)
	if err := stripe.VerifySignature(payload, sig, s.cfg.Stripe.WebhookSecret, s.cfg.Stripe.SignatureTolerance, time.Now()); err != nil {
		metrics.IncVerifyFailure()
		l.Warn().Err(err).Msg("webhook verification failed")
		writeError(w, http.StatusBadRequest, "VERIFICATION_FAILED", "Webhook signature verification failed")
		return
	}

	ev, err := stripe.ParseEvent(payload)
	if err != nil {
		metrics.IncVerifyFailure()
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "Could not parse event")
		return
	}

	if err := s.reconcileUC.Process(r.Context(), ev); err != nil {
		l.Error().Err(err).Str("event_id", ev.EventID()).Msg("event processing failed; provider will redeliver")
		writeError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "Event could not be applied")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type checkoutRequest struct {
	PriceID    string `json:"priceId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	sess, err := s.checkoutUC.Initiate(r.Context(), id.UserID, req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadySubscribed):
			writeError(w, http.StatusConflict, "ALREADY_SUBSCRIBED", "User already has an active membership")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "priceId, successUrl and cancelUrl are required")
		case errors.Is(err, domain.ErrDownstreamUnavailable):
			writeError(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", "Payment provider unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to create checkout session")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sess.ID, "url": sess.URL})
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	url, err := s.checkoutUC.PortalURL(r.Context(), id.UserID, req.ReturnURL)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NO_MEMBERSHIP", "No active membership found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to create portal session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	url, err := s.communityUC.Invite(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "COMMUNITY_UNAVAILABLE", "Could not create invite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type linkDiscordRequest struct {
	DiscordID string `json:"discordId"`
}

func (s *Server) handleLinkDiscord(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())

	var req linkDiscordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DiscordID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "discordId is required")
		return
	}

	user, err := s.communityUC.LinkDiscord(r.Context(), id.UserID, req.DiscordID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDiscordAlreadyLinked):
			writeError(w, http.StatusBadRequest, "ALREADY_LINKED", "Discord account already linked to another user")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to link discord account")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             user.ID,
		"discordId":      req.DiscordID,
		"membershipTier": user.MembershipTier,
	})
}
