package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/dvcrn/reserve-client/internal/logger"
	"github.com/dvcrn/reserve-client/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// HeaderRequestID is set on every outbound attempt unless the caller sent one.
const HeaderRequestID = "X-Request-ID"

const DefaultRefreshPath = "/refresh"

// Options configures an Executor.
type Options struct {
	// BaseURL is prefixed to every endpoint, e.g. "https://host/api".
	BaseURL     string
	RefreshPath string
	HTTPClient  HTTPClient
	Store       credentials.Store
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	// CoalesceRefresh shares one refresh between concurrent 403s instead of
	// redeeming the refresh token once per request.
	CoalesceRefresh bool
}

// RequestOptions describes the caller's part of a request. Body is kept as
// bytes so the request can be replayed after a refresh.
type RequestOptions struct {
	Method string
	Header http.Header
	Body   []byte
}

// Executor performs requests that need a bearer token and renews the token at
// most once per call when the API answers 403.
type Executor struct {
	baseURL     string
	refreshPath string
	client      HTTPClient
	store       credentials.Store
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	coalesce    bool
	group       singleflight.Group
}

func NewExecutor(opts Options) *Executor {
	client := opts.HTTPClient
	if client == nil {
		client = NewHTTPClient(0)
	}
	refreshPath := opts.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	return &Executor{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		refreshPath: refreshPath,
		client:      client,
		store:       opts.Store,
		logger:      opts.Logger.With().Str("component", "auth").Logger(),
		metrics:     opts.Metrics,
		coalesce:    opts.CoalesceRefresh,
	}
}

// BaseURL returns the API root the executor sends requests to.
func (e *Executor) BaseURL() string { return e.baseURL }

// Do sends one logical request to endpoint.
//
// A 403 triggers a single refresh and a single retry; the retried response is
// returned whatever its status. Any other response is returned untouched.
// Errors are *NetworkError for transport failures and ErrSessionExpired
// (possibly wrapped in *RefreshRejectedError or *ResponseFormatError) when
// the token could not be renewed.
func (e *Executor) Do(ctx context.Context, endpoint string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	url := e.baseURL + endpoint

	resp, err := e.send(ctx, url, opts, e.accessToken(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusForbidden {
		e.metrics.ObserveRequest(resp.StatusCode)
		return resp, nil
	}

	drainAndClose(resp)
	e.logger.Info().Str("endpoint", endpoint).Msg("🔄 Received 403, triggering refresh token flow...")

	parsed, err := e.refreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveRetry()
	resp, err = e.send(ctx, url, opts, parsed.AccessToken)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusForbidden {
		e.logger.Error().Str("endpoint", endpoint).Msg("Still received 403 after token refresh, giving up")
	} else {
		e.logger.Info().Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("Request succeeded after token refresh")
	}
	e.metrics.ObserveRequest(resp.StatusCode)
	return resp, nil
}

// accessToken returns the stored token, or "" when absent or unreadable. The
// request is sent either way and the API decides.
func (e *Executor) accessToken(ctx context.Context) string {
	token, _, err := e.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		e.logger.Warn().Err(err).Msg("⚠️  Failed to read access token, sending request without one")
		return ""
	}
	return token
}

func (e *Executor) send(ctx context.Context, url string, opts *RequestOptions, token string) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = buildHeaders(opts.Header, token)

	e.logger.Debug().
		Str("method", method).
		Str("url", url).
		Str("authorization_preview", "Bearer "+logger.TokenPreview(token)).
		Str("request_id", req.Header.Get(HeaderRequestID)).
		Msg("Upstream request")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: url, Err: err}
	}
	return resp, nil
}

// buildHeaders layers the caller's headers over the JSON default. The bearer
// header is always the executor's own.
func buildHeaders(caller http.Header, token string) http.Header {
	h := make(http.Header, len(caller)+3)
	h.Set("Content-Type", "application/json")
	for k, vs := range caller {
		key := http.CanonicalHeaderKey(k)
		if key == "Authorization" {
			continue
		}
		h[key] = append([]string(nil), vs...)
	}
	h.Set("Authorization", "Bearer "+token)
	if h.Get(HeaderRequestID) == "" {
		h.Set(HeaderRequestID, newRequestID())
	}
	return h
}

func newRequestID() string {
	return uuid.NewString()
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
