package auth

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// HTTPClient is the subset of *http.Client the executor needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client that keeps cookies between requests, so
// session cookies set by the API are sent back like a browser would.
func NewHTTPClient(timeout time.Duration) *http.Client {
	// cookiejar.New only fails for a broken PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
}
