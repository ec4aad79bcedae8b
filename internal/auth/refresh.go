package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/dvcrn/reserve-client/internal/logger"
	"github.com/dvcrn/reserve-client/internal/metrics"
)

const maxRefreshBody = 1 << 20

// ParseRefreshResponse validates a 2xx refresh payload. A body that is not
// JSON, or that lacks a non-empty "token" string, yields a
// *ResponseFormatError.
func ParseRefreshResponse(contentType string, body []byte) (ParsedToken, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || !strings.Contains(mediaType, "json") {
			return ParsedToken{}, &ResponseFormatError{Reason: fmt.Sprintf("expected JSON but got %q", contentType)}
		}
	}

	var raw RefreshResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return ParsedToken{}, &ResponseFormatError{Reason: "body is not a JSON object", Err: err}
	}
	if raw.Token == nil {
		return ParsedToken{}, &ResponseFormatError{Reason: `missing "token" field`}
	}
	if *raw.Token == "" {
		return ParsedToken{}, &ResponseFormatError{Reason: `empty "token" field`}
	}

	parsed := ParsedToken{AccessToken: *raw.Token}
	if raw.RefreshToken != nil {
		parsed.RefreshToken = *raw.RefreshToken
	}
	return parsed, nil
}

// refreshAccessToken runs one refresh, shared with concurrent callers when
// coalescing is enabled.
func (e *Executor) refreshAccessToken(ctx context.Context) (ParsedToken, error) {
	if !e.coalesce {
		return e.refresh(ctx)
	}

	// The shared refresh must not die with whichever caller started it.
	v, err, shared := e.group.Do("refresh", func() (interface{}, error) {
		return e.refresh(context.WithoutCancel(ctx))
	})
	if shared {
		e.logger.Debug().Msg("Joined in-flight token refresh")
	}
	if err != nil {
		return ParsedToken{}, err
	}
	return v.(ParsedToken), nil
}

func (e *Executor) refresh(ctx context.Context) (ParsedToken, error) {
	refreshToken, ok, err := e.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil {
		e.logger.Warn().Err(err).Msg("⚠️  Failed to read refresh token")
	}
	if err != nil || !ok || refreshToken == "" {
		e.metrics.ObserveRefresh(metrics.RefreshNoToken)
		e.expire(ctx)
		return ParsedToken{}, fmt.Errorf("no refresh token stored: %w", ErrSessionExpired)
	}

	payload, err := json.Marshal(RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return ParsedToken{}, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	url := e.baseURL + e.refreshPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return ParsedToken{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, newRequestID())

	resp, err := e.client.Do(req)
	if err != nil {
		e.metrics.ObserveRefresh(metrics.RefreshNetwork)
		return ParsedToken{}, &NetworkError{Op: "refresh", URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		e.metrics.ObserveRefresh(metrics.RefreshNetwork)
		return ParsedToken{}, &NetworkError{Op: "refresh", URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.metrics.ObserveRefresh(metrics.RefreshRejected)
		e.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(body), 512)).
			Msg("❌ Refresh failed")
		e.expire(ctx)
		return ParsedToken{}, &RefreshRejectedError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	parsed, err := ParseRefreshResponse(resp.Header.Get("Content-Type"), body)
	if err != nil {
		e.metrics.ObserveRefresh(metrics.RefreshMalformed)
		e.logger.Error().Err(err).Str("body", truncate(string(body), 512)).Msg("❌ Unusable refresh response")
		e.expire(ctx)
		return ParsedToken{}, err
	}

	// The new token is still used for the retry when it cannot be stored.
	if err := e.store.Set(ctx, credentials.KeyAccessToken, parsed.AccessToken); err != nil {
		e.logger.Error().Err(err).Msg("❌ Failed to store refreshed access token")
	}
	if parsed.RefreshToken != "" && parsed.RefreshToken != refreshToken {
		if err := e.store.Set(ctx, credentials.KeyRefreshToken, parsed.RefreshToken); err != nil {
			e.logger.Error().Err(err).Msg("❌ Failed to store rotated refresh token")
		}
	}

	e.metrics.ObserveRefresh(metrics.RefreshSuccess)
	e.logger.Info().
		Str("access_token", logger.TokenPreview(parsed.AccessToken)).
		Bool("refresh_token_rotated", parsed.RefreshToken != "" && parsed.RefreshToken != refreshToken).
		Msg("✅ Access token refreshed")
	return parsed, nil
}

// expire drops the stored access token so later requests fail fast.
func (e *Executor) expire(ctx context.Context) {
	if err := e.store.Remove(ctx, credentials.KeyAccessToken); err != nil {
		e.logger.Error().Err(err).Msg("❌ Failed to clear access token after refresh failure")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(truncated)"
}
