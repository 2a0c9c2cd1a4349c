package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kungfukitty/project-angeL/internal/config"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	red "github.com/kungfukitty/project-angeL/internal/infra/redis"
	"github.com/kungfukitty/project-angeL/internal/usecase"
)

type Server struct {
	reconcileUC usecase.ReconcileUseCase
	checkoutUC  usecase.CheckoutUseCase
	communityUC usecase.CommunityUseCase
	users       repository.UserRepository
	limiter     *red.RateLimiter
	cfg         *config.Config
	log         *zerolog.Logger
}

func NewServer(
	reconcileUC usecase.ReconcileUseCase,
	checkoutUC usecase.CheckoutUseCase,
	communityUC usecase.CommunityUseCase,
	users repository.UserRepository,
	limiter *red.RateLimiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		reconcileUC: reconcileUC,
		checkoutUC:  checkoutUC,
		communityUC: communityUC,
		users:       users,
		limiter:     limiter,
		cfg:         cfg,
		log:         logger,
	}
}

// Router assembles the HTTP surface. The webhook route carries no auth
// guard (the signature IS the authentication) and no rate limit: throttling
// provider redelivery would only multiply duplicate deliveries later.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	base := []Middleware{TraceID(), Recover(s.log), RequestLog(s.log), Timeout(15 * time.Second)}
	wrap := func(h http.HandlerFunc, mws ...Middleware) http.Handler {
		return Chain(h, append(append([]Middleware{}, base...), mws...)...)
	}

	authed := Guard(BearerJWT(s.cfg.Auth.JWTSecret, s.users))
	checkoutGuard := Guard(
		BearerJWT(s.cfg.Auth.JWTSecret, s.users),
		CheckoutRateLimit(s.limiter, s.cfg.RateLimit.CheckoutPerMinute),
	)

	r.Method(http.MethodGet, "/api/health", wrap(s.handleHealth))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Method(http.MethodPost, "/api/payments/webhook", wrap(s.handleWebhook))
	r.Method(http.MethodPost, "/api/payments/create-checkout-session", wrap(s.handleCreateCheckout, checkoutGuard))
	r.Method(http.MethodPost, "/api/payments/portal", wrap(s.handlePortal, authed))

	r.Method(http.MethodGet, "/api/community/discord/invite", wrap(s.handleInvite, authed))
	r.Method(http.MethodPost, "/api/community/discord/link", wrap(s.handleLinkDiscord, authed))

	return r
}
