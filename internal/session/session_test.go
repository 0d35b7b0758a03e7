package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chauffeur-booking/internal/storage"
)

const testSecret = "super-secret-jwt-key"

func mintToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           sub,
		"email":         email,
		"role":          "authenticated",
		"exp":           exp.Unix(),
		"user_metadata": map[string]any{"role": "driver"},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type fakeGoTrue struct {
	t           *testing.T
	srv         *httptest.Server
	refreshes   int32
	signOuts    int32
	userLookups int32
	confirm     bool
	bareRefresh bool
}

func newFakeGoTrue(t *testing.T) *fakeGoTrue {
	f := &fakeGoTrue{t: t}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoTrue) session(access string) map[string]any {
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-2",
		"user":          map[string]any{"id": "user-1", "email": "ana@example.com", "user_metadata": map[string]any{}},
	}
}

func (f *fakeGoTrue) serve(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "anon-key", r.Header.Get("apikey"))
	w.Header().Set("Content-Type", "application/json")
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
		if body["password"] != "correct-horse" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(f.session(mintToken(f.t, "user-1", "ana@example.com", time.Now().Add(time.Hour))))
	case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
		atomic.AddInt32(&f.refreshes, 1)
		if body["refresh_token"] != "refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":400,"error_code":"refresh_token_not_found","msg":"Invalid Refresh Token"}`)
			return
		}
		if f.bareRefresh {
			fmt.Fprint(w, `{"access_token":"opaque-refreshed","token_type":"bearer","expires_in":3600,"refresh_token":"refresh-2"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(f.session(mintToken(f.t, "user-1", "ana@example.com", time.Now().Add(time.Hour))))
	case r.URL.Path == "/auth/v1/user":
		atomic.AddInt32(&f.userLookups, 1)
		if r.Header.Get("Authorization") != "Bearer opaque-refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"code":401,"msg":"invalid JWT"}`)
			return
		}
		fmt.Fprint(w, `{"id":"user-1","email":"ana@example.com","user_metadata":{"role":"driver"}}`)
	case r.URL.Path == "/auth/v1/signup":
		if f.confirm {
			fmt.Fprint(w, `{"id":"user-9","email":"new@example.com"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(f.session(mintToken(f.t, "user-1", "ana@example.com", time.Now().Add(time.Hour))))
	case r.URL.Path == "/auth/v1/logout":
		atomic.AddInt32(&f.signOuts, 1)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newTestProvider(t *testing.T, f *fakeGoTrue, local storage.Local) *Provider {
	t.Helper()
	auth := NewAuthClient(f.srv.URL, "anon-key", nil)
	return NewProvider(auth, local, "sb-test-auth-token", NewClaimsParser(testSecret), nil)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "sb-abcd1234-auth-token", StorageKey("https://abcd1234.supabase.co"))
	assert.Equal(t, "sb-localhost-auth-token", StorageKey("http://localhost:54321"))
}

func TestHomePath(t *testing.T) {
	assert.Equal(t, "/admin", HomePath(&User{UserMetadata: map[string]any{"role": "Admin"}}))
	assert.Equal(t, "/driver", HomePath(&User{UserMetadata: map[string]any{"role": "driver"}}))
	assert.Equal(t, "/book", HomePath(&User{}))
	assert.Equal(t, "/book", HomePath(nil))
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	f := newFakeGoTrue(t)
	local := storage.NewMemoryBackend().For("v1")
	p := newTestProvider(t, f, local)
	ctx := context.Background()

	assert.True(t, p.State().Loading)
	events, cancel := p.Subscribe()
	defer cancel()

	p.Initialize(ctx)
	assert.Equal(t, EventInitialSession, (<-events).Type)
	assert.False(t, p.State().Loading)
	assert.Nil(t, p.State().User)

	user, err := p.SignIn(ctx, " ana@example.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)

	ev := <-events
	assert.Equal(t, EventSignedIn, ev.Type)
	assert.Equal(t, "user-1", ev.User.ID)

	token, err := StoredToken{Local: local, Key: "sb-test-auth-token"}.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.State().Session.AccessToken, token)
	assert.NotZero(t, p.State().Session.ExpiresAt)
}

func TestSignInRejected(t *testing.T) {
	f := newFakeGoTrue(t)
	p := newTestProvider(t, f, storage.NewMemoryBackend().For("v1"))

	_, err := p.SignIn(context.Background(), "ana@example.com", "wrong")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.Equal(t, "Invalid login credentials", authErr.Message)
	assert.Nil(t, p.State().User)

	_, err = p.SignIn(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrCredentialsRequired)
}

func TestInitializeRestoresAndRefreshes(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session restored without network", func(t *testing.T) {
		f := newFakeGoTrue(t)
		local := storage.NewMemoryBackend().For("v1")
		raw, _ := json.Marshal(Session{AccessToken: mintToken(t, "user-7", "kai@example.com", time.Now().Add(time.Hour))})
		require.NoError(t, local.Set(ctx, "sb-test-auth-token", string(raw)))

		p := newTestProvider(t, f, local)
		p.Initialize(ctx)
		p.Initialize(ctx)
		st := p.State()
		require.NotNil(t, st.User)
		assert.Equal(t, "user-7", st.User.ID, "user rebuilt from token claims")
		assert.Equal(t, "driver", st.User.Role())
		assert.Zero(t, atomic.LoadInt32(&f.refreshes))
	})

	t.Run("expired session refreshed", func(t *testing.T) {
		f := newFakeGoTrue(t)
		local := storage.NewMemoryBackend().For("v1")
		raw, _ := json.Marshal(Session{
			AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Now().Add(-time.Minute)),
			RefreshToken: "refresh-1",
		})
		require.NoError(t, local.Set(ctx, "sb-test-auth-token", string(raw)))

		p := newTestProvider(t, f, local)
		p.Initialize(ctx)
		assert.Equal(t, int32(1), atomic.LoadInt32(&f.refreshes))
		require.NotNil(t, p.State().User)

		stored, ok, _ := local.Get(ctx, "sb-test-auth-token")
		require.True(t, ok)
		assert.Contains(t, stored, "refresh-2")
	})

	t.Run("expired session without refresh token cleared", func(t *testing.T) {
		f := newFakeGoTrue(t)
		local := storage.NewMemoryBackend().For("v1")
		raw, _ := json.Marshal(Session{AccessToken: mintToken(t, "user-1", "ana@example.com", time.Now().Add(-time.Minute))})
		require.NoError(t, local.Set(ctx, "sb-test-auth-token", string(raw)))

		p := newTestProvider(t, f, local)
		p.Initialize(ctx)
		assert.Nil(t, p.State().User)
		_, ok, _ := local.Get(ctx, "sb-test-auth-token")
		assert.False(t, ok)
	})

	t.Run("forged token cleared", func(t *testing.T) {
		f := newFakeGoTrue(t)
		local := storage.NewMemoryBackend().For("v1")
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("other-secret"))
		require.NoError(t, err)
		raw, _ := json.Marshal(Session{AccessToken: forged})
		require.NoError(t, local.Set(ctx, "sb-test-auth-token", string(raw)))

		p := newTestProvider(t, f, local)
		p.Initialize(ctx)
		assert.Nil(t, p.State().User)
	})
}

func TestSignOut(t *testing.T) {
	f := newFakeGoTrue(t)
	local := storage.NewMemoryBackend().For("v1")
	p := newTestProvider(t, f, local)
	ctx := context.Background()

	assert.ErrorIs(t, p.SignOut(ctx), ErrNotSignedIn)

	_, err := p.SignIn(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)
	events, cancel := p.Subscribe()
	defer cancel()
	assert.Equal(t, EventInitialSession, (<-events).Type)

	require.NoError(t, p.SignOut(ctx))
	ev := <-events
	assert.Equal(t, EventSignedOut, ev.Type)
	assert.Nil(t, ev.User)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.signOuts))

	token, err := StoredToken{Local: local, Key: "sb-test-auth-token"}.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSignUpWithEmailConfirmation(t *testing.T) {
	f := newFakeGoTrue(t)
	f.confirm = true
	p := newTestProvider(t, f, storage.NewMemoryBackend().For("v1"))

	user, err := p.SignUp(context.Background(), "new@example.com", "pw-123456", nil)
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.ID)
	assert.Nil(t, p.State().User, "no session until email is confirmed")
}

func TestRefreshEmitsTokenRefreshed(t *testing.T) {
	f := newFakeGoTrue(t)
	local := storage.NewMemoryBackend().For("v1")
	raw, _ := json.Marshal(Session{
		AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour)),
		RefreshToken: "refresh-1",
	})
	require.NoError(t, local.Set(context.Background(), "sb-test-auth-token", string(raw)))
	p := newTestProvider(t, f, local)
	p.Initialize(context.Background())

	events, cancel := p.Subscribe()
	defer cancel()
	<-events
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, EventTokenRefreshed, (<-events).Type)
}

func TestRefreshWithoutUserLooksUpAccount(t *testing.T) {
	f := newFakeGoTrue(t)
	f.bareRefresh = true
	local := storage.NewMemoryBackend().For("v1")
	raw, _ := json.Marshal(Session{
		AccessToken:  mintToken(t, "user-1", "ana@example.com", time.Now().Add(time.Hour)),
		RefreshToken: "refresh-1",
	})
	require.NoError(t, local.Set(context.Background(), "sb-test-auth-token", string(raw)))
	p := newTestProvider(t, f, local)
	p.Initialize(context.Background())

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.userLookups))
	user := p.State().User
	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "/driver", HomePath(user))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	p := NewProvider(nil, storage.NewMemoryBackend().For("v1"), "k", nil, nil)
	events, cancel := p.Subscribe()
	p.Close()
	_, open := <-events
	assert.False(t, open)
	cancel()

	late, _ := p.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestStoredTokenUnreadable(t *testing.T) {
	local := storage.NewMemoryBackend().For("v1")
	require.NoError(t, local.Set(context.Background(), "k", "{not json"))
	token, err := StoredToken{Local: local, Key: "k"}.AccessToken(context.Background())
	assert.Error(t, err)
	assert.Empty(t, token)

	token, err = StoredToken{Local: local, Key: "missing"}.AccessToken(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, token)
}

func TestClaimsParserUnverified(t *testing.T) {
	token := mintToken(t, "user-3", "lee@example.com", time.Now().Add(-time.Hour))
	claims, err := NewClaimsParser("").Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-3", claims.Subject)
	assert.Equal(t, "lee@example.com", claims.User().Email)

	_, err = NewClaimsParser(testSecret).Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
