package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultKeychainService = "reserve-client-credentials"
	keychainAccount        = "reserve-client"

	// security(1) exits with 44 when the item does not exist.
	keychainItemNotFound = 44
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// KeychainStore keeps the token map as a single generic password item in the
// macOS keychain. Reads are cached for cacheTTL; every write refreshes the
// cache.
type KeychainStore struct {
	service string
	run     commandRunner
	logger  *zerolog.Logger

	mu       sync.Mutex
	cached   map[string]string
	cachedAt time.Time
	cacheTTL time.Duration
}

func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{
		service:  service,
		run:      runCommand,
		cacheTTL: 5 * time.Minute,
	}
}

// NewKeychainStoreWithLogger creates a keychain store that logs cache misses.
func NewKeychainStoreWithLogger(service string, logger zerolog.Logger) *KeychainStore {
	k := NewKeychainStore(service)
	k.logger = &logger
	return k
}

func (k *KeychainStore) Get(ctx context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.load(ctx)
	if err != nil {
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	v, ok := values[key]
	return v, ok, nil
}

func (k *KeychainStore) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.load(ctx)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	next := copyMap(values)
	next[key] = value
	if err := k.save(ctx, next); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (k *KeychainStore) Remove(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.load(ctx)
	if err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	next := copyMap(values)
	delete(next, key)
	if err := k.save(ctx, next); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// load must be called with k.mu held.
func (k *KeychainStore) load(ctx context.Context) (map[string]string, error) {
	if k.cached != nil && time.Since(k.cachedAt) < k.cacheTTL {
		return k.cached, nil
	}

	output, err := k.run(ctx, "security", "find-generic-password", "-s", k.service, "-w")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			k.remember(map[string]string{})
			return k.cached, nil
		}
		return nil, fmt.Errorf("failed to retrieve password from Keychain: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(output, &values); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from keychain: %w", err)
	}

	if k.logger != nil {
		k.logger.Debug().Str("service", k.service).Int("keys", len(values)).Msg("🔑 Loaded credentials from keychain")
	}
	k.remember(values)
	return values, nil
}

func (k *KeychainStore) save(ctx context.Context, values map[string]string) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if _, err := k.run(ctx, "security", "add-generic-password", "-s", k.service, "-a", keychainAccount, "-w", string(payload), "-U"); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}
	k.remember(values)
	return nil
}

func (k *KeychainStore) remember(values map[string]string) {
	k.cached = values
	k.cachedAt = time.Now()
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
