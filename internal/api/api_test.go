package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/poisonedglass/internal/api/apierr"
	"github.com/mcoot/poisonedglass/internal/api/middleware"
	"github.com/mcoot/poisonedglass/internal/api/response"
	"github.com/mcoot/poisonedglass/internal/factory"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	app := factory.NewTestApp(t)
	return &testServer{
		handler: app.Handler(),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func registerPlayer(t *testing.T, ts *testServer, username string) string {
	t.Helper()
	body := map[string]string{
		"username":        username,
		"password":        "secret123",
		"repeat_password": "secret123",
		"email":           username + "@example.com",
	}
	rr := ts.request(http.MethodPost, "/api/v1/players/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.SessionToken
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice")

	loginBody := map[string]string{"username": "alice", "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var loginResp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &loginResp))
	assert.Equal(t, "alice", loginResp.Username)
	assert.NotEmpty(t, loginResp.SessionToken)
	require.NotNil(t, loginResp.Profile)
	assert.Equal(t, "Just now.", loginResp.Profile.LastSeen)
}

func TestLoginValidation(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"malformed body", "not an object", http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"missing password", map[string]string{"username": "alice"}, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"wrong password", map[string]string{"username": "alice", "password": "nope"}, http.StatusUnauthorized, apierr.CodeInvalidCredentials},
		{"unknown user", map[string]string{"username": "zed", "password": "secret123"}, http.StatusUnauthorized, apierr.CodeInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/players/login", tt.body, "")
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rr))
		})
	}
}

func TestRegisterMissingFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players/register", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeMissingFields, errorCode(t, rr))
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "bob")

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var me response.Profile
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "bob", me.Username)
	assert.Equal(t, "bob@example.com", me.Email)
	assert.Zero(t, me.Wins)
}

func TestCookieAuth(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "bob")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/players/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/players/me", "/api/v1/sessions", "/api/v1/sessions/ABC234/events"} {
		rr := ts.request(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr), path)
	}
}

func TestQueryTokenOnlyForStreams(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/sessions?token="+token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Unknown session, but authentication passed
	rr = ts.request(http.MethodGet, "/api/v1/sessions/NOPE22/events?token="+token, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeSessionNotFound, errorCode(t, rr))
}

func TestCreateAndJoinSession(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "alice")
	ts.app.MockRandom.QueueString("ABC234")

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)

	// Codes are matched case-insensitively; display name defaults to the username
	rr = ts.request(http.MethodPost, "/api/v1/sessions/abc234/join", map[string]string{}, token)
	require.Equal(t, http.StatusOK, rr.Code)

	var join response.JoinResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &join))
	assert.Equal(t, "api:alice", join.ConnectionID)
	assert.Equal(t, 0, join.Slot)
	assert.True(t, join.Changed)
	require.Len(t, join.Session.Participants, 1)
	assert.Equal(t, "alice", join.Session.Participants[0].DisplayName)
	assert.False(t, join.Session.Ready)
}

func TestJoinErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := registerPlayer(t, ts, "alice")
	bob := registerPlayer(t, ts, "bob")
	ts.app.MockRandom.QueueString("ABC234")
	require.Equal(t, http.StatusCreated, ts.request(http.MethodPost, "/api/v1/sessions", nil, alice).Code)

	rr := ts.request(http.MethodPost, "/api/v1/sessions/ABC234/join", map[string]string{"display_name": "Twin"}, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/ABC234/join", map[string]string{"display_name": "Twin"}, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeNameTaken, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/ABC234/join", map[string]string{"display_name": "   "}, bob)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidName, errorCode(t, rr))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	token := registerPlayer(t, ts, "alice")

	rr := ts.request(http.MethodDelete, "/api/v1/sessions", nil, token)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, apierr.CodeMethodNotAllowed, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/sessions/ABC234/join", nil, token)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, errorCode(t, rr))
}
