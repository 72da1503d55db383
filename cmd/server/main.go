package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/burgerbus/memberclub/internal/auth"
	"github.com/burgerbus/memberclub/internal/config"
	"github.com/burgerbus/memberclub/internal/logging"
	"github.com/burgerbus/memberclub/internal/server"
	"github.com/burgerbus/memberclub/internal/service"
	"github.com/burgerbus/memberclub/internal/storage/sqlite"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	store, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("failed to open storage", "path", cfg.Storage.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage failed", "error", err)
		}
	}()

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("failed to build token issuer", "error", err)
		os.Exit(1)
	}

	var prices service.PriceFeed = service.StaticPriceFeed{Price: cfg.Club.BCHPriceUSD}
	if cfg.Club.BCHPriceURL != "" {
		prices = &service.HTTPPriceFeed{
			URL:      cfg.Club.BCHPriceURL,
			Fallback: cfg.Club.BCHPriceUSD,
		}
	}

	membership := service.NewMembershipService(store, tokens, cfg.Club, logger)
	payments := service.NewPaymentService(store, cfg.Club, prices, logger)
	affiliates := service.NewAffiliateService(store, cfg.Club, logger)

	if cfg.Auth.AdminEmail != "" {
		if err := membership.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Error("failed to bootstrap admin account", "error", err)
			os.Exit(1)
		}
	}

	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := service.NewExpirySweeper(store, cfg.Reconcile.SweepInterval, logger)
	go sweeper.Run(sweeperCtx)

	apiHandlers := server.NewAPIHandlers(logger, membership, payments, affiliates, tokens)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StorageHealthService{Store: store},
		API:              apiHandlers,
		MetricsEnabled:   cfg.HTTP.MetricsEnabled,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
