package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/authz"
	"github.com/finedge/corebank/internal/cards"
	"github.com/finedge/corebank/internal/config"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/database"
	"github.com/finedge/corebank/internal/engine"
	"github.com/finedge/corebank/internal/handlers"
	"github.com/finedge/corebank/internal/logging"
	"github.com/finedge/corebank/internal/reports"
	"github.com/finedge/corebank/internal/session"
	"github.com/finedge/corebank/internal/settlement"
	"github.com/finedge/corebank/internal/store"
	"github.com/finedge/corebank/internal/upi"
)

func main() {
	cfg := config.Load()

	logger, logCloser, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer logCloser.Close()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("database init failed")
	}
	defer db.Close()

	redisClient, err := database.InitRedis(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, cache-backed features disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	st := store.New(db)
	auditLog := audit.NewLogger(st, logger)
	hasher := credentials.NewHasher(cfg.Argon2)
	authorizer := authz.New(st, cfg, auditLog, logger)
	eng := engine.New(st, authorizer, auditLog, hasher, cfg, logger)
	cardSvc := cards.New(st, auditLog, logger)
	reportSvc := reports.New(st, logger)
	sessions := session.NewManager(cfg, redisClient, logger)
	settleSvc := settlement.New(redisClient, "FINEDGEB", "356", logger)
	upiSvc := upi.New(st, redisClient, logger)

	channelHandler := handlers.NewChannelHandler(eng, settleSvc, upiSvc, logger)
	isoHandler := handlers.NewISOHandler(eng, cfg.ISOMACKey, logger)
	adminHandler := handlers.NewAdminHandler(eng, cardSvc, reportSvc, sessions, st, cfg, logger)

	router := handlers.NewRouter(channelHandler, isoHandler, adminHandler, sessions, st)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}
