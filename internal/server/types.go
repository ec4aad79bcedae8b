package server

import (
	"time"

	"github.com/dvcrn/reserve-client/internal/session"
)

// SessionStatus is served by GET /session/status. It never carries a token.
type SessionStatus struct {
	session.State
	HasRefreshToken      bool       `json:"hasRefreshToken"`
	AccessTokenExpiresAt *time.Time `json:"accessTokenExpiresAt,omitempty"`
	AccessTokenExpired   bool       `json:"accessTokenExpired"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokensRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
