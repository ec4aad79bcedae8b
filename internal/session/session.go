package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/rs/zerolog"
)

// ErrInvalidCredentials is returned by Login when a token is missing.
var ErrInvalidCredentials = errors.New("session: access and refresh tokens are both required")

// State is a snapshot of the session flags.
type State struct {
	IsAuthenticated bool `json:"isAuthenticated"`
	IsLoading       bool `json:"isLoading"`
}

// Observer is notified of authentication changes. metrics.Metrics satisfies it.
type Observer interface {
	SetAuthenticated(bool)
}

type Session struct {
	store    credentials.Store
	logger   zerolog.Logger
	observer Observer

	mu          sync.RWMutex
	state       State
	initialized bool
	subs        map[int]chan State
	nextSub     int
}

type Option func(*Session)

// WithObserver reports every authentication change to o.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// New returns a session in the loading state. Call Bootstrap before use.
func New(store credentials.Store, logger zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
		state:  State{IsLoading: true},
		subs:   make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize derives the state from the stored access token. It runs at most
// once; a storage failure leaves the session unauthenticated.
func (s *Session) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	s.initialized = true

	token, ok, err := s.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("⚠️  Auth check failed, starting unauthenticated")
	}
	authenticated := err == nil && ok && token != ""

	s.setLocked(State{IsAuthenticated: authenticated, IsLoading: false})
	s.logger.Info().Bool("authenticated", authenticated).Msg("Session initialized")
}

// Login persists both tokens and marks the session authenticated. Nothing is
// marked authenticated unless both writes succeed.
func (s *Session) Login(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, credentials.KeyAccessToken, accessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := s.store.Set(ctx, credentials.KeyRefreshToken, refreshToken); err != nil {
		// Keep the pair invariant: do not leave a lone access token behind.
		if rmErr := s.store.Remove(ctx, credentials.KeyAccessToken); rmErr != nil {
			s.logger.Error().Err(rmErr).Msg("❌ Failed to roll back access token after partial login")
		}
		s.setLocked(State{IsAuthenticated: false, IsLoading: s.state.IsLoading})
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.setLocked(State{IsAuthenticated: true, IsLoading: false})
	s.logger.Info().Msg("✅ Logged in")
	return nil
}

// Logout clears both tokens. The session always ends unauthenticated; removal
// failures are still reported to the caller.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.store.Remove(ctx, credentials.KeyAccessToken); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove access token: %w", err))
	}
	if err := s.store.Remove(ctx, credentials.KeyRefreshToken); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove refresh token: %w", err))
	}

	s.setLocked(State{IsAuthenticated: false, IsLoading: false})

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error().Err(err).Msg("❌ Logout could not clear stored credentials")
	} else {
		s.logger.Info().Msg("Logged out")
	}
	return err
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) IsAuthenticated() bool { return s.State().IsAuthenticated }

func (s *Session) IsLoading() bool { return s.State().IsLoading }

// Subscribe returns a channel receiving the current state followed by every
// change. A slow reader only sees the most recent state. The returned func
// unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// setLocked must be called with s.mu held for writing.
func (s *Session) setLocked(next State) {
	s.state = next
	if s.observer != nil {
		s.observer.SetAuthenticated(next.IsAuthenticated)
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}
