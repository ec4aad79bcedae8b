package auth

// RefreshRequest is the body POSTed to the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the raw refresh endpoint payload. Token is required;
// RefreshToken is only present when the API rotates refresh tokens.
type RefreshResponse struct {
	Token        *string `json:"token"`
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// ParsedToken is a validated refresh result.
type ParsedToken struct {
	AccessToken  string
	RefreshToken string
}
