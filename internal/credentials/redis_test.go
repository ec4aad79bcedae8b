package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, "")
	assert.Equal(t, DefaultRedisPrefix, s.prefix)

	ctx := context.Background()

	_, _, err := s.Get(ctx, KeyAccessToken)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	err = s.Set(ctx, KeyAccessToken, "A1")
	assert.True(t, IsStorageError(err))

	err = s.Remove(ctx, KeyAccessToken)
	assert.True(t, IsStorageError(err))
}
