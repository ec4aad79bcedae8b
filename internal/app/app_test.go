package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvcrn/reserve-client/internal/api"
	"github.com/dvcrn/reserve-client/internal/auth"
	"github.com/dvcrn/reserve-client/internal/config"
	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	logouts      int32
	logoutTokens []string
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password string }
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body.Password != "pw" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"A1","refresh_token":"R1"}`))
	})
	mux.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"A-new","refresh_token":"R-new"}`))
	})
	mux.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.logouts, 1)
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		b.logoutTokens = append(b.logoutTokens, body.RefreshToken)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"success"}`))
	})
	return mux
}

func newTestApp(t *testing.T) (*App, *backend, *httptest.Server, credentials.Store) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		API: config.APIConfig{
			BaseURL:     srv.URL + "/api",
			RefreshPath: "/refresh",
			Timeout:     5 * time.Second,
		},
		Store: config.StoreConfig{Backend: config.StoreMemory},
		HTTP:  config.HTTPConfig{AdminAPIKey: "k"},
	}
	store, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)

	a := New(cfg, store, zerolog.Nop())
	a.Bootstrap(context.Background())
	return a, b, srv, store
}

func TestSignIn(t *testing.T) {
	a, _, _, store := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.SignIn(ctx, "a@b.c", "pw"))
	assert.True(t, a.Session().IsAuthenticated())

	pair, err := credentials.Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, credentials.Pair{AccessToken: "A1", RefreshToken: "R1"}, pair)
}

func TestSignIn_Rejected(t *testing.T) {
	a, _, _, _ := newTestApp(t)

	err := a.SignIn(context.Background(), "a@b.c", "wrong")
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.False(t, a.Session().IsAuthenticated())
}

func TestSignUp(t *testing.T) {
	a, _, _, store := newTestApp(t)
	require.NoError(t, a.SignUp(context.Background(), "Ann", "ann@example.com", "pw"))

	v, _, err := store.Get(context.Background(), credentials.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "R-new", v)
}

func TestSignOut_RevokesRefreshToken(t *testing.T) {
	a, b, _, store := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.SignInWithTokens(ctx, "A1", "R1"))

	require.NoError(t, a.SignOut(ctx))
	assert.False(t, a.Session().IsAuthenticated())
	assert.Equal(t, []string{"R1"}, b.logoutTokens)

	_, ok, err := store.Get(ctx, credentials.KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignOut_BackendDownStillClears(t *testing.T) {
	a, _, srv, store := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.SignInWithTokens(ctx, "A1", "R1"))
	srv.Close()

	require.NoError(t, a.SignOut(ctx))
	assert.False(t, a.Session().IsAuthenticated())
	_, ok, _ := store.Get(ctx, credentials.KeyAccessToken)
	assert.False(t, ok)
}

func TestSignOut_NothingStoredSkipsBackend(t *testing.T) {
	a, b, _, _ := newTestApp(t)
	require.NoError(t, a.SignOut(context.Background()))
	assert.Equal(t, int32(0), atomic.LoadInt32(&b.logouts))
}

func TestHandleSessionExpired(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.SignInWithTokens(ctx, "A1", "R1"))

	assert.False(t, a.HandleSessionExpired(ctx, errors.New("other")))
	assert.True(t, a.Session().IsAuthenticated())

	assert.True(t, a.HandleSessionExpired(ctx, &auth.RefreshRejectedError{StatusCode: 403}))
	assert.False(t, a.Session().IsAuthenticated())
}

func TestStatus(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	ctx := context.Background()

	st := a.Status(ctx)
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.HasRefreshToken)
	assert.Nil(t, st.AccessTokenExpiresAt)

	exp := time.Now().Add(-time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, a.SignInWithTokens(ctx, token, "R1"))

	st = a.Status(ctx)
	assert.True(t, st.IsAuthenticated)
	assert.True(t, st.HasRefreshToken)
	require.NotNil(t, st.AccessTokenExpiresAt)
	assert.True(t, exp.Equal(*st.AccessTokenExpiresAt))
	assert.True(t, st.AccessTokenExpired)
}

func TestNewServer(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	srv := a.NewServer()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		store   config.StoreConfig
		want    any
		wantErr bool
	}{
		{name: "fs", store: config.StoreConfig{Backend: config.StoreFS, Path: filepath.Join(dir, "creds.json")}, want: &credentials.FSStore{}},
		{name: "memory", store: config.StoreConfig{Backend: config.StoreMemory}, want: &credentials.MemoryStore{}},
		{name: "env", store: config.StoreConfig{Backend: config.StoreEnv}, want: &credentials.EnvStore{}},
		{name: "keychain", store: config.StoreConfig{Backend: config.StoreKeychain, KeychainService: "svc"}, want: &credentials.KeychainStore{}},
		{name: "redis", store: config.StoreConfig{Backend: config.StoreRedis}, want: &credentials.RedisStore{}},
		{name: "unknown", store: config.StoreConfig{Backend: "floppy"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Store: tt.store, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}
			got, err := NewStore(cfg, zerolog.Nop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
