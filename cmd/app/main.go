// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kungfukitty/project-angeL/internal/config"
	"github.com/kungfukitty/project-angeL/internal/infra/db/postgres"
	"github.com/kungfukitty/project-angeL/internal/infra/discord"
	"github.com/kungfukitty/project-angeL/internal/infra/logging"
	"github.com/kungfukitty/project-angeL/internal/infra/metrics"
	red "github.com/kungfukitty/project-angeL/internal/infra/redis"
	"github.com/kungfukitty/project-angeL/internal/infra/sched"
	"github.com/kungfukitty/project-angeL/internal/infra/stripe"
	"github.com/kungfukitty/project-angeL/internal/infra/web"
	"github.com/kungfukitty/project-angeL/internal/infra/worker"
	"github.com/kungfukitty/project-angeL/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	limiter := red.NewRateLimiter(redisClient)
	retryQueue := red.NewRetryQueue(redisClient)

	// ---- Repositories ----
	userRepo := postgres.NewUserRepo(pool)
	membershipRepo := postgres.NewMembershipRepo(pool)
	txManager := postgres.NewTxManager(pool)

	// ---- Adapters ----
	gateway, err := stripe.NewGateway(cfg.Stripe.SecretKey, cfg.Stripe.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("stripe gateway")
	}
	access, err := discord.NewAccessAdapter(
		cfg.Discord.BotToken, cfg.Discord.GuildID, cfg.Discord.VIPRoleID,
		cfg.Discord.InviteChannelID, cfg.Discord.APIBaseURL,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("discord adapter")
	}

	// ---- Background workers ----
	taskPool := worker.NewPool(cfg.Sync.Workers, logger)
	taskPool.Start(ctx)
	defer taskPool.Stop()

	retryWorker := sched.NewAccessRetryWorker(retryQueue, access, cfg.Sync.RetryInterval, cfg.Sync.MaxAttempts, logger)
	go retryWorker.Start(ctx)

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(membershipRepo, userRepo, access, retryQueue, txManager, taskPool, logger)
	checkoutUC := usecase.NewCheckoutUseCase(userRepo, membershipRepo, gateway, logger)
	communityUC := usecase.NewCommunityUseCase(userRepo, membershipRepo, access, logger)

	// ---- HTTP ----
	srv := web.NewServer(reconcileUC, checkoutUC, communityUC, userRepo, limiter, cfg, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
