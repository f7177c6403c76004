package localsession_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-sso/localsession"
	"github.com/stretchr/testify/require"
)

const cookieName = "sso_session"

func TestAuth_LoginLogout(t *testing.T) {
	ctx := context.Background()
	repo := localsession.NewInMemoryRepo()
	m := localsession.NewManager(repo, cookieName, time.Hour, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	auth := m.ForRequest(w, r)
	require.True(t, auth.Guest(ctx))
	require.Empty(t, auth.UserID(ctx))

	require.NoError(t, auth.LoginUser(ctx, "user-1"))
	require.False(t, auth.Guest(ctx))
	require.Equal(t, "user-1", auth.UserID(ctx))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, cookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, 3600, cookies[0].MaxAge)

	// A later request carrying the cookie sees the same user.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	auth2 := m.ForRequest(w2, r2)
	require.Equal(t, "user-1", auth2.UserID(ctx))

	require.NoError(t, auth2.Logout(ctx))
	require.True(t, auth2.Guest(ctx))
	_, err := repo.Get(cookies[0].Value)
	require.Error(t, err)

	cleared := w2.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, -1, cleared[0].MaxAge)
}

func TestAuth_LoginRotatesSession(t *testing.T) {
	ctx := context.Background()
	repo := localsession.NewInMemoryRepo()
	m := localsession.NewManager(repo, cookieName, time.Hour, true)

	w := httptest.NewRecorder()
	auth := m.ForRequest(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, auth.LoginUser(ctx, "user-1"))
	first := w.Result().Cookies()[0]
	require.True(t, first.Secure)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(first)
	w = httptest.NewRecorder()
	auth = m.ForRequest(w, r)
	require.NoError(t, auth.LoginUser(ctx, "user-2"))
	second := w.Result().Cookies()[0]

	require.NotEqual(t, first.Value, second.Value)
	_, err := repo.Get(first.Value)
	require.Error(t, err)
}

func TestAuth_ExpiredSessionIsGuest(t *testing.T) {
	ctx := context.Background()
	repo := localsession.NewInMemoryRepo()
	require.NoError(t, repo.Upsert("old", localsession.Session{
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	m := localsession.NewManager(repo, cookieName, time.Hour, false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookieName, Value: "old"})
	auth := m.ForRequest(httptest.NewRecorder(), r)
	require.True(t, auth.Guest(ctx))
}
