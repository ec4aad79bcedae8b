// Package app wires the credential store, session, executor and API client
// into one unit shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dvcrn/reserve-client/internal/api"
	"github.com/dvcrn/reserve-client/internal/auth"
	"github.com/dvcrn/reserve-client/internal/config"
	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/dvcrn/reserve-client/internal/metrics"
	"github.com/dvcrn/reserve-client/internal/server"
	"github.com/dvcrn/reserve-client/internal/session"
	"github.com/rs/zerolog"
)

type App struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    credentials.Store
	session  *session.Session
	executor *auth.Executor
	api      *api.Client
	metrics  *metrics.Metrics
}

// New builds the object graph around store. Nothing touches storage until
// Bootstrap is called.
func New(cfg *config.Config, store credentials.Store, logger zerolog.Logger) *App {
	m := metrics.New()
	httpClient := auth.NewHTTPClient(cfg.API.Timeout)

	executor := auth.NewExecutor(auth.Options{
		BaseURL:         cfg.API.BaseURL,
		RefreshPath:     cfg.API.RefreshPath,
		HTTPClient:      httpClient,
		Store:           store,
		Logger:          logger,
		Metrics:         m,
		CoalesceRefresh: cfg.API.CoalesceRefresh,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		session:  session.New(store, logger, session.WithObserver(m)),
		executor: executor,
		api:      api.New(cfg.API.BaseURL, httpClient, executor, logger),
		metrics:  m,
	}
}

func (a *App) Session() *session.Session { return a.session }
func (a *App) Executor() *auth.Executor  { return a.executor }
func (a *App) API() *api.Client          { return a.api }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Bootstrap loads the persisted session. It must run before the first
// authenticated request is routed.
func (a *App) Bootstrap(ctx context.Context) session.State {
	return session.Bootstrap(ctx, a.session)
}

// SignIn authenticates with email and password and persists the tokens.
func (a *App) SignIn(ctx context.Context, email, password string) error {
	pair, err := a.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return a.SignInWithTokens(ctx, pair.Token, pair.RefreshToken)
}

func (a *App) SignInWithGoogle(ctx context.Context, idToken string) error {
	pair, err := a.api.GoogleAuth(ctx, idToken)
	if err != nil {
		return fmt.Errorf("google sign-in failed: %w", err)
	}
	return a.SignInWithTokens(ctx, pair.Token, pair.RefreshToken)
}

func (a *App) SignInWithApple(ctx context.Context, identityToken string) error {
	pair, err := a.api.AppleAuth(ctx, identityToken)
	if err != nil {
		return fmt.Errorf("apple sign-in failed: %w", err)
	}
	return a.SignInWithTokens(ctx, pair.Token, pair.RefreshToken)
}

// SignUp registers a new account and signs it in.
func (a *App) SignUp(ctx context.Context, name, email, password string) error {
	pair, err := a.api.Register(ctx, name, email, password)
	if err != nil {
		return fmt.Errorf("sign-up failed: %w", err)
	}
	return a.SignInWithTokens(ctx, pair.Token, pair.RefreshToken)
}

// SignInWithTokens adopts a token pair obtained elsewhere.
func (a *App) SignInWithTokens(ctx context.Context, accessToken, refreshToken string) error {
	return a.session.Login(ctx, accessToken, refreshToken)
}

// SignOut revokes the refresh token on the backend when one is stored and
// then clears the local session. A failed revocation does not keep the user
// signed in.
func (a *App) SignOut(ctx context.Context) error {
	refreshToken, ok, err := a.store.Get(ctx, credentials.KeyRefreshToken)
	switch {
	case err != nil:
		a.logger.Warn().Err(err).Msg("⚠️  Could not read refresh token, skipping backend logout")
	case ok && refreshToken != "":
		if err := a.api.Logout(ctx, refreshToken); err != nil {
			a.logger.Warn().Err(err).Msg("⚠️  Backend logout failed, clearing local session anyway")
		}
	}
	return a.session.Logout(ctx)
}

// HandleSessionExpired logs the user out when err means the token could not
// be renewed. It reports whether it did.
func (a *App) HandleSessionExpired(ctx context.Context, err error) bool {
	if !auth.IsSessionExpired(err) {
		return false
	}
	a.logger.Warn().Err(err).Msg("⚠️  Session expired, logging out")
	if logoutErr := a.session.Logout(ctx); logoutErr != nil {
		a.logger.Error().Err(logoutErr).Msg("❌ Failed to clear credentials after session expiry")
	}
	return true
}

// Status describes the session without exposing any token.
func (a *App) Status(ctx context.Context) server.SessionStatus {
	st := server.SessionStatus{State: a.session.State()}

	access, ok, err := a.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		a.logger.Warn().Err(err).Msg("⚠️  Failed to read access token for status")
	} else if ok {
		if exp, found := auth.TokenExpiry(access); found {
			st.AccessTokenExpiresAt = &exp
			st.AccessTokenExpired = time.Now().After(exp)
		}
	}

	refresh, ok, err := a.store.Get(ctx, credentials.KeyRefreshToken)
	st.HasRefreshToken = err == nil && ok && refresh != ""
	return st
}

// NewServer creates the local session proxy for this app.
func (a *App) NewServer() *server.Server {
	return server.New(server.Options{
		Logger:      a.logger,
		Session:     a.session,
		Controller:  a,
		Executor:    a.executor,
		Metrics:     a.metrics,
		AdminAPIKey: a.cfg.HTTP.AdminAPIKey,
	})
}
