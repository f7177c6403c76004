package broker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		tok, err := generateToken()
		require.NoError(t, err)
		require.Len(t, tok, tokenLength)
		require.True(t, validToken(tok), tok)
		seen[tok] = struct{}{}
	}
	require.Len(t, seen, 200)
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore("Acme", 5*time.Minute)
	require.Equal(t, "sso_token_acme", store.CookieName())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	req := NewRequest(NewHTTPCookies(w, r, true), nil)

	tok, isNew, err := store.EnsureToken(req)
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, StateTokenIssued, req.State())

	again, isNew, err := store.EnsureToken(req)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, tok, again)

	cookie := w.Result().Cookies()[0]
	require.Equal(t, 300, cookie.MaxAge)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	store.ClearToken(req)
	require.Equal(t, StateNoToken, req.State())
	_, ok := req.Cookies.Get(store.CookieName())
	require.False(t, ok)
}

func TestTokenStore_IgnoresMalformedCookie(t *testing.T) {
	store := NewTokenStore("acme", time.Minute)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sso_token_acme", Value: "short-and-has-dashes"})
	req := NewRequest(NewHTTPCookies(httptest.NewRecorder(), r, false), nil)

	tok, isNew, err := store.EnsureToken(req)
	require.NoError(t, err)
	require.True(t, isNew)
	require.NotEqual(t, "short-and-has-dashes", tok)
}
