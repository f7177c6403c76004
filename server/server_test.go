package server_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/jrsteele09/go-sso/attachments"
	fakebrokerrepo "github.com/jrsteele09/go-sso/brokers/repofake"
	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/server"
	"github.com/jrsteele09/go-sso/sessionid"
	"github.com/jrsteele09/go-sso/users"
	fakeuserrepo "github.com/jrsteele09/go-sso/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminEmail    = "admin@localhost"
	testAdminPassword = "Admin-Password1"
	testReturnURL     = "http://acme.test/back"
)

var acme = sessionid.Broker{Name: "acme", Secret: "acme-secret"}

type testEnv struct {
	server *server.Server
	repos  server.Repos
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("SSO_ADMIN_PASSWORD", testAdminPassword)

	repos := server.Repos{
		Brokers:     fakebrokerrepo.NewFakeBrokerRepo(),
		Users:       fakeuserrepo.NewFakeUserRepo(),
		Attachments: attachments.NewInMemoryRepo(attachments.DefaultTTL),
	}
	cfg := config.NewFromFile(&config.File{
		Brokers: []config.BrokerSeed{{Name: acme.Name, Secret: acme.Secret, Origin: "http://acme.test"}},
	})
	s, err := server.New(cfg, repos)
	require.NoError(t, err)
	return &testEnv{server: s, repos: repos}
}

func sessionIDFor(t *testing.T, token string) string {
	t.Helper()
	sid, err := sessionid.Checksum{}.SessionID(token, acme)
	require.NoError(t, err)
	return sid
}

func (e *testEnv) do(t *testing.T, method, path, sid string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if form != nil {
		r = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if sid != "" {
		r.Header.Set("Authorization", "Bearer "+sid)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func credentials(login, password string) url.Values {
	return url.Values{"username": {login}, "password": {password}}
}

func TestAttachCommand_Idempotent(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "token-1")

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, server.RouteAttach, sid, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, map[string]any{"success": "attached"}, decode(t, w))
	}

	record, err := env.repos.Attachments.Get(context.Background(), sid)
	require.NoError(t, err)
	require.Equal(t, acme.Name, record.Broker)
	require.False(t, record.Authenticated())
}

func TestCommands_RequireBrokerSession(t *testing.T) {
	env := newTestServer(t)

	other, err := sessionid.Checksum{}.SessionID("token-1", sessionid.Broker{Name: "other", Secret: "x"})
	require.NoError(t, err)
	forged, err := sessionid.Checksum{}.SessionID("token-1", sessionid.Broker{Name: acme.Name, Secret: "wrong"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"malformed session id", "Bearer garbage", http.StatusUnauthorized},
		{"unknown broker", "Bearer " + other, http.StatusForbidden},
		{"bad checksum", "Bearer " + forged, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, server.RouteAttach, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.server.ServeHTTP(w, r)
			require.Equal(t, tt.status, w.Code)
			require.Contains(t, decode(t, w), "error")
		})
	}
}

func TestUserInfo_NotAttached(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "never-attached")

	w := env.do(t, http.MethodGet, server.RouteUserInfo, sid, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "session not attached", decode(t, w)["error"])

	w = env.do(t, http.MethodPost, server.RouteLogin, sid, credentials(testAdminEmail, testAdminPassword))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginCommand_Lifecycle(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "token-1")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, server.RouteAttach, sid, nil).Code)

	w := env.do(t, http.MethodGet, server.RouteUserInfo, sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"data": nil}, decode(t, w))

	w = env.do(t, http.MethodPost, server.RouteLogin, sid, credentials(testAdminEmail, "wrong"))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, map[string]any{"error": "invalid credentials"}, decode(t, w))

	w = env.do(t, http.MethodPost, server.RouteLogin, sid, credentials(testAdminEmail, testAdminPassword))
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, testAdminEmail, data["email"])
	require.NotEmpty(t, data["id"])
	require.NotContains(t, w.Body.String(), "password")

	w = env.do(t, http.MethodGet, server.RouteUserInfo, sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, data, info)

	w = env.do(t, http.MethodPost, server.RouteLogout, sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"success": "logged out"}, decode(t, w))

	w = env.do(t, http.MethodGet, server.RouteUserInfo, sid, nil)
	require.Equal(t, map[string]any{"data": nil}, decode(t, w))
}

func TestLoginCommand_BlockedUser(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "token-1")
	env.do(t, http.MethodGet, server.RouteAttach, sid, nil)
	require.NoError(t, env.repos.Users.SetBlocked(testAdminEmail, true))

	w := env.do(t, http.MethodPost, server.RouteLogin, sid, credentials(testAdminEmail, testAdminPassword))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginCommand_RateLimited(t *testing.T) {
	t.Setenv("SSO_LOGIN_RATE_LIMIT", "2")
	env := newTestServer(t)
	sid := sessionIDFor(t, "token-1")
	env.do(t, http.MethodGet, server.RouteAttach, sid, nil)

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, server.RouteLogin, sid, credentials(testAdminEmail, "wrong"))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := env.do(t, http.MethodPost, server.RouteLogin, sid, credentials(testAdminEmail, testAdminPassword))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "rate limited", decode(t, w)["error"])

	// Other session ids are unaffected
	sid2 := sessionIDFor(t, "token-2")
	env.do(t, http.MethodGet, server.RouteAttach, sid2, nil)
	w = env.do(t, http.MethodPost, server.RouteLogin, sid2, credentials(testAdminEmail, testAdminPassword))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRelayMiddleware_MatchesHeader(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "relay-token")

	var seen []string
	capture := func(w http.ResponseWriter, r *http.Request) {
		v, _ := r.Context().Value(server.ContextKeySessionID).(string)
		seen = append(seen, v)
		w.WriteHeader(http.StatusNoContent)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /relay/{token...}", server.ChainMiddleware(capture, env.server.RelayMiddleware, env.server.RequireBrokerSession))
	mux.HandleFunc("GET /direct", server.ChainMiddleware(capture, env.server.RequireBrokerSession))

	r := httptest.NewRequest(http.MethodGet, "/direct", nil)
	r.Header.Set("Authorization", "Bearer "+sid)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		token := enc.EncodeToString([]byte(sid))
		if strings.Contains(token, "//") {
			continue
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/relay/"+url.PathEscape(token), nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	for _, v := range seen {
		require.Equal(t, sid, v)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/relay/!!!not-base64", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

var flowIDPattern = regexp.MustCompile(`name="flow_id" value="([^"]+)"`)

func brokerLoginPath(sid, returnURL string) string {
	return server.RouteAPIPrefix + "brokers/login/" + base64.URLEncoding.EncodeToString([]byte(sid)) +
		"?return_url=" + url.QueryEscape(returnURL)
}

func TestBrokerLogin_BrowserFlow(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "browser-token")
	path := brokerLoginPath(sid, testReturnURL)

	w := env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	match := flowIDPattern.FindStringSubmatch(w.Body.String())
	require.Len(t, match, 2)
	flowID := match[1]

	// The page attaches the session id on the way through
	record, err := env.repos.Attachments.Get(context.Background(), sid)
	require.NoError(t, err)
	require.False(t, record.Authenticated())

	form := credentials(testAdminEmail, "wrong")
	form.Set("flow_id", flowID)
	w = env.do(t, http.MethodPost, path, "", form)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid username or password")
	require.NotContains(t, w.Body.String(), "wrong")

	form = credentials(testAdminEmail, testAdminPassword)
	form.Set("flow_id", flowID)
	w = env.do(t, http.MethodPost, path, "", form)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, testReturnURL, w.Header().Get("Location"))

	record, err = env.repos.Attachments.Get(context.Background(), sid)
	require.NoError(t, err)
	require.True(t, record.Authenticated())

	var serverSession *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "sso_server_session" {
			serverSession = c
		}
	}
	require.NotNil(t, serverSession)
	assert.True(t, serverSession.HttpOnly)

	// The flow is single use
	w = env.do(t, http.MethodPost, path, "", form)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// A second broker session is logged in straight away by the server session
	sid2 := sessionIDFor(t, "second-token")
	w = env.do(t, http.MethodGet, brokerLoginPath(sid2, testReturnURL), "", nil, serverSession)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, testReturnURL, w.Header().Get("Location"))
	record, err = env.repos.Attachments.Get(context.Background(), sid2)
	require.NoError(t, err)
	require.True(t, record.Authenticated())
}

func TestBrokerLogin_StandardBase64WithSlash(t *testing.T) {
	env := newTestServer(t)

	var sid, token string
	for i := 0; token == ""; i++ {
		candidate := sessionIDFor(t, fmt.Sprintf("slash-token-%d", i))
		encoded := base64.StdEncoding.EncodeToString([]byte(candidate))
		if strings.Contains(encoded, "/") && !strings.Contains(encoded, "//") {
			sid, token = candidate, encoded
		}
	}

	path := server.RouteAPIPrefix + "brokers/login/" + token + "?return_url=" + url.QueryEscape(testReturnURL)
	w := env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, err := env.repos.Attachments.Get(context.Background(), sid)
	require.NoError(t, err)
}

func TestBrokerLogin_FlowBoundToSessionID(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "browser-token")

	w := env.do(t, http.MethodGet, brokerLoginPath(sid, testReturnURL), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	flowID := flowIDPattern.FindStringSubmatch(w.Body.String())[1]

	form := credentials(testAdminEmail, testAdminPassword)
	form.Set("flow_id", flowID)
	other := sessionIDFor(t, "another-token")
	w = env.do(t, http.MethodPost, brokerLoginPath(other, testReturnURL), "", form)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBrokerLogin_RejectsReturnURL(t *testing.T) {
	env := newTestServer(t)
	sid := sessionIDFor(t, "browser-token")

	for _, returnURL := range []string{"", "http://evil.test/steal", "javascript:alert(1)", "/relative"} {
		w := env.do(t, http.MethodGet, brokerLoginPath(sid, returnURL), "", nil)
		require.Equal(t, http.StatusBadRequest, w.Code, returnURL)
	}

	w := env.do(t, http.MethodGet, server.RouteAPIPrefix+"brokers/login/%25%25?return_url="+url.QueryEscape(testReturnURL), "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestServer(t)

	w := env.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"status": "ok"}, decode(t, w))

	env.do(t, http.MethodGet, server.RouteAttach, sessionIDFor(t, "token-1"), nil)

	w = env.do(t, http.MethodGet, server.RouteMetrics, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `sso_server_attaches_total{broker="acme"} 1`)
	require.Contains(t, w.Body.String(), "sso_server_http_requests_total")
	require.Contains(t, w.Body.String(), "go_goroutines")
}

func TestInitialiseSystem(t *testing.T) {
	env := newTestServer(t)

	b, err := env.repos.Brokers.Get(context.Background(), acme.Name)
	require.NoError(t, err)
	require.Equal(t, acme.Secret, b.Secret)

	admin, err := users.Authenticate(env.repos.Users, "email", testAdminEmail, testAdminPassword)
	require.NoError(t, err)

	// A restart keeps the existing administrator
	_, err = server.New(config.NewFromFile(nil), env.repos)
	require.NoError(t, err)
	again, err := env.repos.Users.GetByEmail(testAdminEmail)
	require.NoError(t, err)
	require.Equal(t, admin.ID, again.ID)
}
