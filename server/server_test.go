package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/puku-sh/puku-auth/internal/config"
	"github.com/puku-sh/puku-auth/kvstore"
	"github.com/puku-sh/puku-auth/server"
)

const (
	testClientID      = "test-client-1"
	testClientSecret  = "test-secret-1"
	testCallbackURI   = "puku://editor/cb"
	testDefaultURI    = "puku://puku.puku-editor/auth/callback"
	testGoogleSub     = "google-user-1"
	testGoogleEmail   = "john.doe@example.com"
	testGoogleName    = "John Doe"
	testGooglePicture = "https://example.com/avatar.png"
)

var tokenPattern = regexp.MustCompile(`<code id="token">([0-9a-f]{64})</code>`)

// testConfig satisfies config.Config with everything pointed at test fixtures
type testConfig struct {
	baseURL         string
	googleURL       string
	subscriptionURL string
}

func (testConfig) GetPort() string                      { return ":0" }
func (testConfig) GetAppName() string                   { return "Puku Auth Test" }
func (testConfig) GetEnv() string                       { return "TEST" }
func (c testConfig) GetBaseURL() string                 { return c.baseURL }
func (testConfig) GetRedisAddr() string                 { return "" }
func (testConfig) GetDefaultRedirectURI() string        { return testDefaultURI }
func (c testConfig) GetSubscriptionServiceURL() string  { return c.subscriptionURL }
func (testConfig) GetGoogleClientID() string            { return testClientID }
func (testConfig) GetGoogleClientSecret() string        { return testClientSecret }
func (c testConfig) GetGoogleIssuer() string            { return c.googleURL }
func (c testConfig) GetGoogleAuthURL() string           { return c.googleURL + "/auth" }
func (c testConfig) GetGoogleTokenURL() string          { return c.googleURL + "/token" }
func (c testConfig) GetGoogleUserInfoURL() string       { return c.googleURL + "/userinfo" }
func (testConfig) GetCallbackStateTTL() time.Duration   { return 10 * time.Minute }
func (testConfig) GetSessionTTL() time.Duration         { return 7 * 24 * time.Hour }
func (testConfig) GetTokenLength() int                  { return 32 }

var _ config.Config = testConfig{}

// fakeGoogle stands in for Google's token and userinfo endpoints
type fakeGoogle struct {
	server       *httptest.Server
	failExchange bool
	failUserInfo bool
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	g := &fakeGoogle{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if g.failExchange {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ya29.test-access",
			"refresh_token": "1//test-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if g.failUserInfo {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":     testGoogleSub,
			"email":   testGoogleEmail,
			"name":    testGoogleName,
			"picture": testGooglePicture,
		})
	})

	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

type testFixture struct {
	server *server.Server
	store  *kvstore.MemoryStore
	google *fakeGoogle
	config testConfig
}

func setupTestFixture(t *testing.T, subscriptionURL string) *testFixture {
	t.Helper()

	google := newFakeGoogle(t)
	cfg := testConfig{
		baseURL:         "http://auth.test",
		googleURL:       google.server.URL,
		subscriptionURL: subscriptionURL,
	}

	store := kvstore.NewMemoryStore()
	srv, err := server.New(context.Background(), cfg, store)
	require.NoError(t, err)

	return &testFixture{server: srv, store: store, google: google, config: cfg}
}

func (f *testFixture) do(t *testing.T, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

// startSignIn runs /auth/google with a callback and returns the state minted
// for it.
func (f *testFixture) startSignIn(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodGet, "/auth/google?callback="+url.QueryEscape(testCallbackURI), nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return location.Query().Get("state")
}

// completeSignIn runs the Google callback and extracts the minted session id
// from the success page.
func (f *testFixture) completeSignIn(t *testing.T, state string) (string, string) {
	t.Helper()

	target := "/auth/google/callback?code=test-code"
	if state != "" {
		target += "&state=" + state
	}
	rec := f.do(t, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	match := tokenPattern.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2, "success page must display the raw token")
	return match[1], rec.Body.String()
}

func TestGoogleLoginRedirectsWithState(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/google?callback="+url.QueryEscape(testCallbackURI), nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, f.google.server.URL+"/auth", location.Scheme+"://"+location.Host+location.Path)

	query := location.Query()
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, testClientID, query.Get("client_id"))
	require.Equal(t, "openid email profile", query.Get("scope"))
	require.Equal(t, "offline", query.Get("access_type"))
	require.Equal(t, "consent", query.Get("prompt"))
	require.Equal(t, "http://auth.test/auth/google/callback", query.Get("redirect_uri"))
	require.Regexp(t, "^[0-9a-f]{64}$", query.Get("state"))

	// The callback URI is parked under the state
	value, err := f.store.Get(context.Background(), "callback:"+query.Get("state"))
	require.NoError(t, err)
	require.Equal(t, testCallbackURI, value)
}

func TestGoogleLoginWithoutCallbackOmitsState(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/google", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.False(t, location.Query().Has("state"))
}

func TestCallbackMintsUsableSession(t *testing.T) {
	f := setupTestFixture(t, "")

	state := f.startSignIn(t)
	token, body := f.completeSignIn(t, state)

	// The page links back into the desktop app with token and state
	require.Contains(t, body, "token="+token)
	require.Contains(t, body, "state="+state)
	require.Contains(t, body, testCallbackURI)

	// The minted session is immediately usable
	rec := f.do(t, http.MethodGet, "/auth/session", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	var session struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		Picture   string    `json:"picture"`
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.Equal(t, testGoogleSub, session.ID)
	require.Equal(t, testGoogleEmail, session.Email)
	require.Equal(t, testGoogleName, session.Name)
	require.Equal(t, testGooglePicture, session.Picture)
	require.False(t, session.CreatedAt.IsZero())

	// The upstream Google tokens never appear in the response
	require.NotContains(t, rec.Body.String(), "ya29.test-access")
	require.NotContains(t, rec.Body.String(), "1//test-refresh")
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := setupTestFixture(t, "")

	state := f.startSignIn(t)
	_, firstBody := f.completeSignIn(t, state)
	require.Contains(t, firstBody, testCallbackURI)

	// Replaying the state is not fatal, but the parked callback is gone so
	// the page falls back to the default redirect URI
	_, replayBody := f.completeSignIn(t, state)
	require.NotContains(t, replayBody, testCallbackURI)
	require.Contains(t, replayBody, testDefaultURI)
}

func TestCallbackWithProviderError(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/google/callback?error=access_denied", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "access_denied")
}

func TestCallbackWithoutCode(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/google/callback", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "missing authorization code")
}

func TestCallbackWhenExchangeFails(t *testing.T) {
	f := setupTestFixture(t, "")
	f.google.failExchange = true

	rec := f.do(t, http.MethodGet, "/auth/google/callback?code=bad-code", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "token exchange failed")
}

func TestCallbackWhenUserInfoFails(t *testing.T) {
	f := setupTestFixture(t, "")
	f.google.failUserInfo = true

	rec := f.do(t, http.MethodGet, "/auth/google/callback?code=test-code", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "failed to fetch user info")
}

func TestSessionWithUnknownToken(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/session", bearer("0000000000000000000000000000000000000000000000000000000000000000"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"Invalid or expired session"}`, rec.Body.String())
}

func TestSessionWithoutBearer(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutInvalidatesSessionAndIsIdempotent(t *testing.T) {
	f := setupTestFixture(t, "")

	token, _ := f.completeSignIn(t, f.startSignIn(t))

	rec := f.do(t, http.MethodPost, "/auth/logout", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/auth/session", bearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A second logout is not an error
	rec = f.do(t, http.MethodPost, "/auth/logout", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestStatusNeverErrors(t *testing.T) {
	f := setupTestFixture(t, "")

	rec := f.do(t, http.MethodGet, "/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/auth/status", http.Header{"Authorization": {"NotBearer stuff"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/auth/status", bearer("unknown-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	token, _ := f.completeSignIn(t, f.startSignIn(t))
	rec = f.do(t, http.MethodGet, "/auth/status", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Authenticated bool `json:"authenticated"`
		User          struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.Authenticated)
	require.Equal(t, testGoogleEmail, status.User.Email)
}

func TestCallbackMirrorsProfile(t *testing.T) {
	mirrored := make(chan map[string]string, 1)
	subscription := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user map[string]string
		_ = json.NewDecoder(r.Body).Decode(&user)
		mirrored <- user
		w.WriteHeader(http.StatusCreated)
	}))
	defer subscription.Close()

	f := setupTestFixture(t, subscription.URL)
	f.completeSignIn(t, f.startSignIn(t))

	select {
	case user := <-mirrored:
		require.Equal(t, testGoogleEmail, user["email"])
		require.Equal(t, testGoogleSub, user["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("profile was not mirrored to the subscription service")
	}
}

func TestMirrorFailureDoesNotAffectSignIn(t *testing.T) {
	subscription := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer subscription.Close()

	f := setupTestFixture(t, subscription.URL)

	token, _ := f.completeSignIn(t, f.startSignIn(t))

	rec := f.do(t, http.MethodGet, "/auth/session", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
}
