package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	"github.com/kungfukitty/project-angeL/internal/infra/logging"
	red "github.com/kungfukitty/project-angeL/internal/infra/redis"
)

// Identity is the authenticated caller attached to the request context once
// the guard pipeline allows it through.
type Identity struct {
	UserID string
	Email  string
}

// Decision is the explicit outcome of one authorization step. "Respond and
// stop" versus "continue" is a first-class value here, not an unspoken
// convention about whether a continuation was invoked.
type Decision struct {
	Allow    bool
	Status   int
	Code     string
	Message  string
	Identity *Identity
}

func allow(id *Identity) Decision {
	return Decision{Allow: true, Identity: id}
}

func deny(status int, code, message string) Decision {
	return Decision{Allow: false, Status: status, Code: code, Message: message}
}

// GuardStep inspects a request and returns a Decision. Steps run in order;
// the first denial responds and stops the pipeline.
type GuardStep func(r *http.Request) Decision

// Guard composes steps into a middleware. An allowing step that carries an
// Identity attaches it to the context for later steps and the handler.
func Guard(steps ...GuardStep) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, step := range steps {
				d := step(r)
				if !d.Allow {
					writeError(w, d.Status, d.Code, d.Message)
					return
				}
				if d.Identity != nil {
					ctx := withIdentity(r.Context(), d.Identity)
					ctx = logging.WithUserID(ctx, d.Identity.UserID)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type identityKey struct{}

func withIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated identity, or nil on unauthenticated
// routes.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

type authClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// BearerJWT validates the Authorization header and resolves the subject to a
// stored user, yielding the Identity for the rest of the pipeline.
func BearerJWT(secret string, users repository.UserRepository) GuardStep {
	return func(r *http.Request) Decision {
		header := r.Header.Get("Authorization")
		if header == "" {
			return deny(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return deny(http.StatusUnauthorized, "UNAUTHORIZED", "Malformed token")
		}

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			return deny(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		}

		user, err := users.FindByID(r.Context(), repository.NoTX, claims.Subject)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return deny(http.StatusUnauthorized, "UNAUTHORIZED", "User not found")
			}
			return deny(http.StatusInternalServerError, "INTERNAL", "Authentication failed")
		}
		return allow(&Identity{UserID: user.ID, Email: user.Email})
	}
}

// CheckoutRateLimit throttles checkout initiations per authenticated user.
// It must run after BearerJWT. A broken limiter fails open: rejecting
// checkouts because redis is down would be the worse outcome.
func CheckoutRateLimit(limiter *red.RateLimiter, perMinute int) GuardStep {
	return func(r *http.Request) Decision {
		id := IdentityFrom(r.Context())
		if id == nil {
			return deny(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		}
		ok, err := limiter.Allow(r.Context(), red.CheckoutKey(id.UserID), perMinute, time.Minute)
		if err != nil {
			return allow(nil)
		}
		if !ok {
			return deny(http.StatusTooManyRequests, "RATE_LIMITED", "Too many checkout attempts")
		}
		return allow(nil)
	}
}
