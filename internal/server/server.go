package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dvcrn/reserve-client/internal/api"
	"github.com/dvcrn/reserve-client/internal/auth"
	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/dvcrn/reserve-client/internal/metrics"
	"github.com/dvcrn/reserve-client/internal/session"
	"github.com/rs/zerolog"
)

const maxProxyBody = 10 << 20

// sseFlushWriter wraps a ResponseWriter to flush after each write.
type sseFlushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw sseFlushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		fw.f.Flush()
	}
	return n, err
}

// Requester sends a request with the session's bearer token.
type Requester interface {
	Do(ctx context.Context, endpoint string, opts *auth.RequestOptions) (*http.Response, error)
}

// StateSource exposes the session state and its change stream.
type StateSource interface {
	State() session.State
	Subscribe() (<-chan session.State, func())
}

// SessionController performs the sign-in flows behind the /session routes.
type SessionController interface {
	SignIn(ctx context.Context, email, password string) error
	SignInWithTokens(ctx context.Context, accessToken, refreshToken string) error
	SignOut(ctx context.Context) error
	Status(ctx context.Context) SessionStatus
	HandleSessionExpired(ctx context.Context, err error) bool
}

type Options struct {
	Logger      zerolog.Logger
	Session     StateSource
	Controller  SessionController
	Executor    Requester
	Metrics     *metrics.Metrics
	AdminAPIKey string
}

type Server struct {
	session    StateSource
	controller SessionController
	executor   Requester
	metrics    *metrics.Metrics
	adminKey   string
	mux        *http.ServeMux
	logger     zerolog.Logger
}

func New(opts Options) *Server {
	s := &Server{
		session:    opts.Session,
		controller: opts.Controller,
		executor:   opts.Executor,
		metrics:    opts.Metrics,
		adminKey:   opts.AdminAPIKey,
		mux:        http.NewServeMux(),
		logger:     opts.Logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/session/login", s.adminMiddleware(s.loginHandler))
	s.mux.HandleFunc("/session/tokens", s.adminMiddleware(s.tokensHandler))
	s.mux.HandleFunc("/session/logout", s.adminMiddleware(s.logoutHandler))
	s.mux.HandleFunc("/session/status", s.adminMiddleware(s.statusHandler))
	s.mux.HandleFunc("/session/events", s.adminMiddleware(s.sessionEventsHandler))
	s.mux.HandleFunc("/api/", s.adminMiddleware(s.proxyHandler))
	s.mux.HandleFunc("/", s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

// loginHandler handles POST /session/login with email and password.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		s.writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Missing required fields: email, password", "")
		return
	}

	if err := s.controller.SignIn(r.Context(), req.Email, req.Password); err != nil {
		s.writeSignInError(w, err)
		return
	}

	s.logger.Info().Msg("✅ Session established via login")
	s.writeJSON(w, http.StatusOK, s.session.State())
}

// tokensHandler handles POST /session/tokens for adopting an existing pair.
func (s *Server) tokensHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req tokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		s.writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if err := s.controller.SignInWithTokens(r.Context(), req.AccessToken, req.RefreshToken); err != nil {
		s.writeSignInError(w, err)
		return
	}

	s.logger.Info().Msg("Session tokens updated")
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.controller.SignOut(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Logged out, but stored credentials could not be cleared", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.controller.Status(r.Context()))
}

// proxyHandler forwards /api/<endpoint> to the backend with the session's
// token. A session that cannot be renewed is logged out and answered 401.
func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/api")
	if r.URL.RawQuery != "" {
		endpoint += "?" + r.URL.RawQuery
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.logger.Warn().Int64("limit", tooLarge.Limit).Msg("📦 Request body too large")
				s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
				return
			}
			s.logger.Error().Err(err).Msg("Error reading request body")
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		defer r.Body.Close()
	}
	if len(body) == 0 {
		body = nil
	}

	resp, err := s.executor.Do(r.Context(), endpoint, &auth.RequestOptions{
		Method: r.Method,
		Header: forwardHeaders(r.Header),
		Body:   body,
	})
	if err != nil {
		switch {
		case s.controller.HandleSessionExpired(r.Context(), err):
			s.writeError(w, http.StatusUnauthorized, "Session expired, please log in again", "")
		case auth.IsNetworkError(err):
			s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Error making request to backend")
			s.writeError(w, http.StatusBadGateway, "Failed to communicate with backend", err.Error())
		default:
			s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Proxy request failed")
			s.writeError(w, http.StatusInternalServerError, "Proxy request failed", err.Error())
		}
		return
	}

	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *http.Response) {
	defer resp.Body.Close()

	rawContentType := resp.Header.Get("Content-Type")
	mediaType := rawContentType
	if mt, _, err := mime.ParseMediaType(rawContentType); err == nil {
		mediaType = mt
	}

	if resp.StatusCode >= 400 {
		s.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("content_type", rawContentType).
			Msg("Received error response from backend")
	}

	for key, values := range resp.Header {
		if isHopByHop(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	isStreaming := mediaType == "text/event-stream"
	if isStreaming {
		w.Header().Del("Content-Length")
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(resp.StatusCode)

	var out io.Writer = w
	if flusher, ok := w.(http.Flusher); ok && isStreaming {
		flusher.Flush()
		out = sseFlushWriter{w: w, f: flusher}
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		s.logger.Error().Err(err).Msg("Error writing response body to client")
	}
}

// writeSignInError maps sign-in failures onto HTTP statuses.
func (s *Server) writeSignInError(w http.ResponseWriter, err error) {
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		s.writeError(w, http.StatusBadRequest, "Missing required fields: accessToken, refreshToken", "")
	case errors.As(err, &statusErr):
		code := http.StatusBadGateway
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			code = http.StatusUnauthorized
		}
		s.writeError(w, code, "Backend rejected sign-in", statusErr.Detail)
	case auth.IsNetworkError(err):
		s.writeError(w, http.StatusBadGateway, "Failed to communicate with backend", err.Error())
	case credentials.IsStorageError(err):
		s.logger.Error().Err(err).Msg("❌ Failed to persist credentials")
		s.writeError(w, http.StatusInternalServerError, "Failed to store credentials", err.Error())
	default:
		s.logger.Error().Err(err).Msg("Sign-in failed")
		s.writeError(w, http.StatusInternalServerError, "Sign-in failed", err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg, detail string) {
	s.writeJSON(w, code, errorResponse{Error: msg, Detail: detail})
}

var hopByHop = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func isHopByHop(key string) bool {
	return hopByHop[http.CanonicalHeaderKey(key)]
}

// forwardHeaders drops hop-by-hop and local credential headers before a
// request leaves for the backend.
func forwardHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		key = http.CanonicalHeaderKey(key)
		switch {
		case isHopByHop(key),
			key == "Authorization",
			key == "X-Api-Key",
			key == "Content-Length",
			key == "Host",
			key == "Accept-Encoding":
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}
