package credentials

import (
	"context"
	"errors"
	"os"
)

// Environment variables read by EnvStore.
const (
	EnvAccessToken  = "RESERVE_ACCESS_TOKEN"
	EnvRefreshToken = "RESERVE_REFRESH_TOKEN"
)

var errEnvReadOnly = errors.New("environment credentials are read-only")

// EnvStore exposes tokens seeded through environment variables. It cannot
// persist a refreshed token, so Set always fails and Remove fails for any
// key that is set.
type EnvStore struct{}

func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func (e *EnvStore) Get(_ context.Context, key string) (string, bool, error) {
	var name string
	switch key {
	case KeyAccessToken:
		name = EnvAccessToken
	case KeyRefreshToken:
		name = EnvRefreshToken
	default:
		return "", false, nil
	}
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (e *EnvStore) Set(_ context.Context, key, _ string) error {
	return &StorageError{Op: "set", Key: key, Err: errEnvReadOnly}
}

func (e *EnvStore) Remove(ctx context.Context, key string) error {
	if _, ok, _ := e.Get(ctx, key); !ok {
		return nil
	}
	return &StorageError{Op: "remove", Key: key, Err: errEnvReadOnly}
}
