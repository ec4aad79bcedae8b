package credentials

import (
	"context"
	"errors"
	"fmt"
)

// Keys under which the credential pair is persisted.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Store is durable key-value persistence for the session tokens.
//
// Get reports ok=false with a nil error when the key was never written.
// Remove of an absent key is not an error. Implementations are last-write-wins
// per key and give no cross-key atomicity.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Pair is the access/refresh token pair held by a Store.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both tokens are present.
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// StorageError is returned when the underlying storage fails.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("credentials: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credentials: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Load reads both tokens from s. Missing keys come back as empty strings.
func Load(ctx context.Context, s Store) (Pair, error) {
	var p Pair
	access, _, err := s.Get(ctx, KeyAccessToken)
	if err != nil {
		return p, err
	}
	refresh, _, err := s.Get(ctx, KeyRefreshToken)
	if err != nil {
		return p, err
	}
	p.AccessToken = access
	p.RefreshToken = refresh
	return p, nil
}
