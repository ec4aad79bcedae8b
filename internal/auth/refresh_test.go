package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRefreshResponse(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        ParsedToken
		wantErr     bool
	}{
		{name: "token only", contentType: "application/json", body: `{"token":"A2"}`, want: ParsedToken{AccessToken: "A2"}},
		{name: "with charset", contentType: "application/json; charset=utf-8", body: `{"token":"A2"}`, want: ParsedToken{AccessToken: "A2"}},
		{name: "rotated refresh token", contentType: "application/json", body: `{"token":"A2","refresh_token":"R2"}`, want: ParsedToken{AccessToken: "A2", RefreshToken: "R2"}},
		{name: "no content type", body: `{"token":"A2"}`, want: ParsedToken{AccessToken: "A2"}},
		{name: "html", contentType: "text/html", body: `<html></html>`, wantErr: true},
		{name: "broken content type", contentType: ";;;", body: `{"token":"A2"}`, wantErr: true},
		{name: "not json", contentType: "application/json", body: `nope`, wantErr: true},
		{name: "array", contentType: "application/json", body: `["A2"]`, wantErr: true},
		{name: "missing token", contentType: "application/json", body: `{"refresh_token":"R2"}`, wantErr: true},
		{name: "empty token", contentType: "application/json", body: `{"token":""}`, wantErr: true},
		{name: "token not a string", contentType: "application/json", body: `{"token":42}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRefreshResponse(tt.contentType, []byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				var formatErr *ResponseFormatError
				assert.True(t, errors.As(err, &formatErr))
				assert.ErrorIs(t, err, ErrSessionExpired)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  7,
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)

	_, ok = TokenExpiry("")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": 7}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}
