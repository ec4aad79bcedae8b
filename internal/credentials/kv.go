//go:build js && wasm

package credentials

import (
	"context"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// DefaultKVNamespace is the binding name configured in wrangler.toml.
const DefaultKVNamespace = "reserve_client_kv"

// KVStore keeps tokens in a Cloudflare Workers KV namespace.
type KVStore struct {
	ns     *kv.Namespace
	prefix string
}

func NewKVStore(binding string) (*KVStore, error) {
	if binding == "" {
		binding = DefaultKVNamespace
	}
	ns, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &KVStore{ns: ns, prefix: "session:"}, nil
}

// Get treats an empty value as absent, the same as a missing key.
func (c *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	raw, err := c.ns.GetString(c.prefix+key, nil)
	if err != nil {
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	v, ok, err := decodeKVValue(raw)
	if err != nil {
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	return v, ok, nil
}

func (c *KVStore) Set(_ context.Context, key, value string) error {
	encoded, err := encodeKVValue(value)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	if err := c.ns.PutString(c.prefix+key, encoded, nil); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (c *KVStore) Remove(_ context.Context, key string) error {
	if err := c.ns.Delete(c.prefix + key); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}
