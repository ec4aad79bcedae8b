package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvcrn/reserve-client/internal/app"
	"github.com/dvcrn/reserve-client/internal/config"
	"github.com/dvcrn/reserve-client/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults to CONFIG_PATH or ./local.yaml)")
	storeBackend := flag.String("store", "", "Override the credential store backend: fs, keychain, redis, memory, env")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New("", "info")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	if *storeBackend != "" {
		cfg.Store.Backend = *storeBackend
		if err := cfg.Validate(); err != nil {
			bootLog := logger.New("", "info")
			bootLog.Fatal().Err(err).Msg("Invalid -store flag")
		}
	}

	log := logger.New(cfg.Env, cfg.LogLevel)

	store, err := app.NewStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open credential store")
	}

	a := app.New(cfg, store, log)

	// The session must be loaded before the first request is routed.
	a.Bootstrap(context.Background())
	validateSessionAtStartup(a, log)

	if cfg.HTTP.AdminAPIKey == "" {
		log.Warn().Msg("⚠️  ADMIN_API_KEY is not set, /session and /api routes will refuse requests")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           a.NewServer(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("api", cfg.API.BaseURL).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}

func validateSessionAtStartup(a *app.App, log zerolog.Logger) {
	st := a.Status(context.Background())
	if !st.IsAuthenticated {
		log.Warn().Msg("⚠️  No stored session, log in via POST /session/login")
		return
	}

	log.Info().Bool("has_refresh_token", st.HasRefreshToken).Msg("✅ Stored session loaded")

	if st.AccessTokenExpiresAt == nil {
		return
	}
	minutesUntilExpiry := int64(time.Until(*st.AccessTokenExpiresAt).Minutes())

	if minutesUntilExpiry <= 0 {
		log.Warn().
			Int64("minutes_expired", -minutesUntilExpiry).
			Msg("⚠️  Access token is already expired, will refresh on first 403")
	} else if minutesUntilExpiry <= 5 {
		log.Warn().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("⚠️  Access token expires soon")
	} else {
		log.Info().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("✅ Access token is valid")
	}
}
