package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-login-broker/auth"
	"github.com/jrsteele09/go-login-broker/authflowrepo"
	"github.com/jrsteele09/go-login-broker/idp"
	"github.com/jrsteele09/go-login-broker/idp/idpfake"
	"github.com/jrsteele09/go-login-broker/internal/config"
	"github.com/jrsteele09/go-login-broker/loginsession"
	"github.com/jrsteele09/go-login-broker/metrics"
	"github.com/jrsteele09/go-login-broker/oauthmodel"
	"github.com/jrsteele09/go-login-broker/popup"
	"github.com/jrsteele09/go-login-broker/server"
	"github.com/jrsteele09/go-login-broker/token"
	"github.com/jrsteele09/go-login-broker/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testFrontendOrigin = "https://app.example.com"
	testCode           = "auth-code-1"
	testEmail          = "jane@example.com"
)

type testFixture struct {
	now      time.Time
	provider *idpfake.Provider
	sessions *loginsession.InMemoryRepo
	server   *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		now:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		provider: idpfake.NewProvider(),
	}
	clock := func() time.Time { return f.now }

	cfg, err := config.Load(map[string]string{
		"GOOGLE_CLIENT_ID":     "client-id",
		"GOOGLE_CLIENT_SECRET": "client-secret",
		"PUBLIC_URL":           "https://auth.example.com",
		"FRONTEND_ORIGIN":      testFrontendOrigin,
		"TOKEN_SECRET":         "0123456789abcdef0123456789abcdef",
	})
	require.NoError(t, err)

	f.provider.AddCode(testCode, idp.Profile{Subject: "google-123", Email: testEmail, EmailVerified: true, Name: "Jane Doe"})
	f.sessions = loginsession.NewInMemoryRepo(loginsession.WithNowTime(clock))

	tokens, err := token.New(cfg.GetTokenSecret(), token.WithNowFunc(clock))
	require.NoError(t, err)
	registry := prometheus.NewRegistry()

	authService, err := auth.NewAuthorizationService(
		auth.Repos{AuthFlows: authflowrepo.NewInMemoryRepo(authflowrepo.WithNowTime(clock)), Sessions: f.sessions},
		f.provider,
		users.NewAllowlist([]string{testEmail}, cfg.GetDefaultPermissions()),
		tokens,
		auth.WithNowTime(clock),
		auth.WithMetrics(metrics.New(registry)),
	)
	require.NoError(t, err)

	page, err := popup.NewPage(cfg.GetFrontendOrigin())
	require.NoError(t, err)

	s, err := server.New(cfg, authService, page, server.WithNowTime(clock), server.WithMetricsGatherer(registry))
	require.NoError(t, err)
	f.server = s
	return f
}

func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func loginQuery(state string) url.Values {
	verifier := oauthmodel.GenerateCodeVerifier()
	return oauthmodel.LoginParameters{
		State:               state,
		CodeChallenge:       oauthmodel.CodeChallengeS256(verifier),
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
		SessionID:           "correlation-1",
		CodeVerifier:        verifier,
	}.Query()
}

// login drives the popup through initiation and callback and returns the callback response.
func (f *testFixture) login(t *testing.T, state, code string) *httptest.ResponseRecorder {
	t.Helper()
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleLogin+"?"+loginQuery(state).Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	q := url.Values{"code": {code}, "state": {state}}
	return f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleCallback+"?"+q.Encode(), nil))
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}

func withCookies(req *http.Request, cookies map[string]*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGoogleLogin(t *testing.T) {
	t.Run("redirects to the provider", func(t *testing.T) {
		f := setupTestFixture(t)
		q := loginQuery("s1")
		rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleLogin+"?"+q.Encode(), nil))

		require.Equal(t, http.StatusFound, rec.Code)
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(location.String(), idpfake.AuthEndpoint))
		require.Equal(t, "s1", location.Query().Get("state"))
		require.Equal(t, q.Get("code_challenge"), location.Query().Get("code_challenge"))
		require.Equal(t, "S256", location.Query().Get("code_challenge_method"))
	})

	t.Run("missing parameters", func(t *testing.T) {
		f := setupTestFixture(t)
		q := loginQuery("s1")
		q.Del("code_verifier")
		rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleLogin+"?"+q.Encode(), nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_request", decodeJSON(t, rec)["error"])
	})
}

func TestGoogleCallback(t *testing.T) {
	t.Run("success sets cookies and posts the session", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.login(t, "s1", testCode)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		require.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors "+testFrontendOrigin)

		cookies := cookiesByName(rec)
		require.Len(t, cookies, 2)
		token, session := cookies["auth_token"], cookies["session_id"]
		require.NotNil(t, token)
		require.NotNil(t, session)
		for _, c := range cookies {
			require.True(t, c.HttpOnly)
			require.True(t, c.Secure)
			require.Equal(t, http.SameSiteStrictMode, c.SameSite)
		}
		require.Equal(t, 24*60*60, token.MaxAge)
		require.Equal(t, 7*24*60*60, session.MaxAge)

		body := rec.Body.String()
		require.Contains(t, body, `"type":"OAUTH_SUCCESS"`)
		require.Contains(t, body, `"sessionId":"`+session.Value+`"`)
		require.Contains(t, body, testEmail)
		require.Equal(t, 1, strings.Count(body, "postMessage("))
	})

	t.Run("late callback renders session expired", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleLogin+"?"+loginQuery("s1").Encode(), nil))
		require.Equal(t, http.StatusFound, rec.Code)
		f.now = f.now.Add(6 * time.Minute)

		q := url.Values{"code": {testCode}, "state": {"s1"}}
		rec = f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleCallback+"?"+q.Encode(), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"type":"OAUTH_ERROR"`)
		require.Contains(t, rec.Body.String(), `"errorCode":"session_expired"`)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("not allowlisted", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.AddCode("other", idp.Profile{Subject: "x", Email: "mallory@example.com", EmailVerified: true})
		rec := f.login(t, "s1", "other")

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"errorCode":"not_authorized"`)
		require.Empty(t, rec.Result().Cookies())
		require.Equal(t, 0, f.sessions.Len())
	})

	t.Run("provider error text is not shown", func(t *testing.T) {
		f := setupTestFixture(t)
		q := url.Values{"error": {"access_denied"}, "error_description": {"secret provider detail"}, "state": {"s1"}}
		rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGoogleCallback+"?"+q.Encode(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"errorCode":"access_denied"`)
		require.NotContains(t, rec.Body.String(), "secret provider detail")
	})
}

func TestVerify(t *testing.T) {
	t.Run("valid cookies", func(t *testing.T) {
		f := setupTestFixture(t)
		cookies := cookiesByName(f.login(t, "s1", testCode))

		rec := f.do(withCookies(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil), cookies))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON(t, rec)
		require.Equal(t, true, body["valid"])
		require.Equal(t, testEmail, body["user"].(map[string]any)["email"])
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("header credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		cookies := cookiesByName(f.login(t, "s1", testCode))

		req := httptest.NewRequest(http.MethodGet, server.RouteVerify, nil)
		req.Header.Set("Authorization", "Bearer "+cookies["auth_token"].Value)
		req.Header.Set("X-Session-ID", cookies["session_id"].Value)
		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, false, decodeJSON(t, rec)["valid"])
	})

	t.Run("unknown session", func(t *testing.T) {
		f := setupTestFixture(t)
		cookies := cookiesByName(f.login(t, "s1", testCode))
		cookies["session_id"].Value = "missing"

		rec := f.do(withCookies(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil), cookies))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("truncated token", func(t *testing.T) {
		f := setupTestFixture(t)
		cookies := cookiesByName(f.login(t, "s1", testCode))
		token := cookies["auth_token"].Value
		cookies["auth_token"].Value = token[:len(token)-1]

		rec := f.do(withCookies(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil), cookies))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, 1, f.sessions.Len())
	})

	t.Run("refresh rotates the token cookie", func(t *testing.T) {
		f := setupTestFixture(t)
		cookies := cookiesByName(f.login(t, "s1", testCode))
		f.now = f.now.Add(25 * time.Hour)

		rec := f.do(withCookies(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil), cookies))
		require.Equal(t, http.StatusOK, rec.Code)
		refreshed := cookiesByName(rec)
		require.NotEqual(t, cookies["auth_token"].Value, refreshed["auth_token"].Value)
		require.Equal(t, 24*60*60, refreshed["auth_token"].MaxAge)

		rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil), cookies))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "old token")
		rec = f.do(withCookies(httptest.NewRequest(http.MethodGet, server.RouteVerify, nil), refreshed))
		require.Equal(t, http.StatusOK, rec.Code, "new token")
	})
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	cookies := cookiesByName(f.login(t, "s1", testCode))

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		rec := f.do(withCookies(httptest.NewRequest(method, server.RouteLogout, nil), cookies))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, true, decodeJSON(t, rec)["success"])
		for _, c := range rec.Result().Cookies() {
			require.Equal(t, -1, c.MaxAge)
		}
		require.Len(t, rec.Result().Cookies(), 2)
	}
	require.Equal(t, 0, f.sessions.Len())
}

func TestLogout_BearerOnly(t *testing.T) {
	f := setupTestFixture(t)
	cookies := cookiesByName(f.login(t, "s1", testCode))

	req := httptest.NewRequest(http.MethodPost, server.RouteLogout, nil)
	req.Header.Set("Authorization", "Bearer "+cookies["auth_token"].Value)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, f.sessions.Len())
}

func TestCors(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteVerify, nil)
	req.Header.Set("Origin", testFrontendOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := f.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, testFrontendOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Session-ID")

	req = httptest.NewRequest(http.MethodGet, server.RouteVerify, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = f.do(req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	f.login(t, "s1", testCode)
	rec = f.do(httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `login_broker_login_callbacks_total{code="",stage="SESSION_CREATED"} 1`)
}
