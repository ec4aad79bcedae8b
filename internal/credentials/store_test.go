package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore checks the contract every writable backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v, ok, err := s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, KeyAccessToken, "A1"))
	require.NoError(t, s.Set(ctx, KeyRefreshToken, "R1"))

	v, ok, err = s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A1", v)

	require.NoError(t, s.Set(ctx, KeyAccessToken, "A2"))
	v, _, err = s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "A2", v)

	pair, err := Load(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, Pair{AccessToken: "A2", RefreshToken: "R1"}, pair)
	assert.True(t, pair.Complete())

	require.NoError(t, s.Remove(ctx, KeyAccessToken))
	require.NoError(t, s.Remove(ctx, KeyAccessToken), "removing an absent key is not an error")

	_, ok, err = s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "R1", v)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	exerciseStore(t, NewFSStore(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFSStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.json")

	require.NoError(t, NewFSStore(path).Set(ctx, KeyAccessToken, "persisted"))

	v, ok, err := NewFSStore(path).Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestFSStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, _, err := NewFSStore(path).Get(context.Background(), KeyAccessToken)
	require.Error(t, err)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "get", se.Op)
	assert.Equal(t, KeyAccessToken, se.Key)
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()
	t.Setenv(EnvAccessToken, "env-access")
	t.Setenv(EnvRefreshToken, "")

	s := NewEnvStore()

	v, ok, err := s.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "env-access", v)

	_, ok, err = s.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok, "empty variable counts as absent")

	err = s.Set(ctx, KeyAccessToken, "x")
	assert.True(t, IsStorageError(err))
	err = s.Remove(ctx, KeyAccessToken)
	assert.True(t, IsStorageError(err))

	assert.NoError(t, s.Remove(ctx, KeyRefreshToken), "removing an absent key is not an error")
	assert.NoError(t, s.Remove(ctx, "unknown"))
}

func TestEnvStore_LogoutWithNothingSeeded(t *testing.T) {
	ctx := context.Background()
	t.Setenv(EnvAccessToken, "")
	t.Setenv(EnvRefreshToken, "")

	s := NewEnvStore()
	assert.NoError(t, s.Remove(ctx, KeyAccessToken))
	assert.NoError(t, s.Remove(ctx, KeyRefreshToken))
}

func TestStorageError_Message(t *testing.T) {
	err := &StorageError{Op: "set", Key: KeyRefreshToken, Err: errors.New("disk full")}
	assert.Equal(t, `credentials: set "refreshToken": disk full`, err.Error())
	assert.ErrorContains(t, err, "disk full")
}
