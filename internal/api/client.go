// Package api is a typed client for the reservation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dvcrn/reserve-client/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxResponseBody = 4 << 20

// Requester sends a request with the session's bearer token. *auth.Executor
// implements it.
type Requester interface {
	Do(ctx context.Context, endpoint string, opts *auth.RequestOptions) (*http.Response, error)
}

// Client talks to the backend. Sign-in and catalogue calls go out on a plain
// HTTP client; everything that needs a token goes through the Requester.
type Client struct {
	baseURL string
	http    auth.HTTPClient
	exec    Requester
	logger  zerolog.Logger
}

func New(baseURL string, httpClient auth.HTTPClient, exec Requester, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = auth.NewHTTPClient(0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		exec:    exec,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Login exchanges email and password for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var out TokenPair
	err := c.public(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &out)
	return out, tokenPairErr(out, err)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, name, email, password string) (TokenPair, error) {
	var out TokenPair
	err := c.public(ctx, http.MethodPost, "/register", registerRequest{
		Name:            name,
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	}, &out)
	return out, tokenPairErr(out, err)
}

// GoogleAuth signs in with a Google ID token.
func (c *Client) GoogleAuth(ctx context.Context, idToken string) (TokenPair, error) {
	var out TokenPair
	err := c.public(ctx, http.MethodPost, "/google-auth", idTokenRequest{Token: idToken}, &out)
	return out, tokenPairErr(out, err)
}

// AppleAuth signs in with an Apple identity token.
func (c *Client) AppleAuth(ctx context.Context, identityToken string) (TokenPair, error) {
	var out TokenPair
	err := c.public(ctx, http.MethodPost, "/apple-auth", idTokenRequest{Token: identityToken}, &out)
	return out, tokenPairErr(out, err)
}

// Forgot asks the backend to mail a password reset link.
func (c *Client) Forgot(ctx context.Context, email string) error {
	var out messageResponse
	return c.public(ctx, http.MethodPost, "/forgot", forgotRequest{Email: email}, &out)
}

func (c *Client) Reset(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return errors.New("api: passwords do not match")
	}
	var out messageResponse
	return c.public(ctx, http.MethodPost, "/reset", resetRequest{
		Token:           token,
		Password:        password,
		PasswordConfirm: confirm,
	}, &out)
}

// FoodItems lists available items.
func (c *Client) FoodItems(ctx context.Context, q FoodItemQuery) ([]FoodItem, error) {
	var out []FoodItem
	err := c.public(ctx, http.MethodGet, "/fooditems/"+q.encode(), nil, &out)
	return out, err
}

func (c *Client) FoodItem(ctx context.Context, id string) (FoodItem, error) {
	var out FoodItem
	if id == "" {
		return out, errors.New("api: food item id is required")
	}
	err := c.public(ctx, http.MethodGet, "/fooditems/"+url.PathEscape(id)+"/", nil, &out)
	return out, err
}

// Logout revokes refreshToken on the backend.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	var out messageResponse
	return c.protected(ctx, http.MethodPost, "/logout", logoutRequest{RefreshToken: refreshToken}, &out)
}

// User returns the signed-in account.
func (c *Client) User(ctx context.Context) (User, error) {
	var out User
	err := c.protected(ctx, http.MethodGet, "/user", nil, &out)
	return out, err
}

func (c *Client) Reservations(ctx context.Context) ([]Reservation, error) {
	var out []Reservation
	err := c.protected(ctx, http.MethodGet, "/reservations/", nil, &out)
	return out, err
}

// Reserve books quantity units of an item.
func (c *Client) Reserve(ctx context.Context, itemID string, quantity int) (Reservation, error) {
	var out Reservation
	if itemID == "" {
		return out, errors.New("api: food item id is required")
	}
	if quantity <= 0 {
		return out, fmt.Errorf("api: quantity must be positive, got %d", quantity)
	}
	err := c.protected(ctx, http.MethodPost, "/reservations/", reserveRequest{FoodItem: itemID, Quantity: quantity}, &out)
	return out, err
}

func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	var out []Job
	err := c.protected(ctx, http.MethodGet, "/jobs", nil, &out)
	return out, err
}

// AddJob records a job application and returns it as stored.
func (c *Client) AddJob(ctx context.Context, job Job) (Job, error) {
	var out Job
	if job.Status != "" && !job.Status.Valid() {
		return out, fmt.Errorf("api: unknown job status %q", job.Status)
	}
	err := c.protected(ctx, http.MethodPost, "/jobs/add/", job, &out)
	return out, err
}

func (q FoodItemQuery) encode() string {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Lat != nil && q.Lng != nil {
		v.Set("lat", strconv.FormatFloat(*q.Lat, 'f', -1, 64))
		v.Set("lng", strconv.FormatFloat(*q.Lng, 'f', -1, 64))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *Client) public(ctx context.Context, method, path string, in, out any) error {
	body, err := encodeBody(in)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(auth.HeaderRequestID, uuid.NewString())

	c.logger.Debug().Str("method", method).Str("path", path).Msg("Public request")

	resp, err := c.http.Do(req)
	if err != nil {
		return &auth.NetworkError{Op: method, URL: c.baseURL + path, Err: err}
	}
	return c.decode(resp, path, out)
}

func (c *Client) protected(ctx context.Context, method, path string, in, out any) error {
	if c.exec == nil {
		return errors.New("api: no authenticated requester configured")
	}
	body, err := encodeBody(in)
	if err != nil {
		return err
	}
	resp, err := c.exec.Do(ctx, path, &auth.RequestOptions{
		Method: method,
		Header: http.Header{"Accept": {"application/json"}},
		Body:   body,
	})
	if err != nil {
		return err
	}
	return c.decode(resp, path, out)
}

func (c *Client) decode(resp *http.Response, path string, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := newStatusError(resp.StatusCode, body)
		c.logger.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("detail", statusErr.Detail).
			Msg("Backend returned an error")
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func encodeBody(in any) ([]byte, error) {
	if in == nil {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return b, nil
}

func tokenPairErr(p TokenPair, err error) error {
	if err != nil {
		return err
	}
	if p.Token == "" || p.RefreshToken == "" {
		return errors.New("api: sign-in response is missing a token")
	}
	return nil
}
