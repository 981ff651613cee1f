package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"timetrack/internal/api/handler"
	"timetrack/internal/api/live"
	"timetrack/internal/app/service"
	"timetrack/internal/app/worker"
	"timetrack/internal/common/security"
	"timetrack/internal/domain/model"
	"timetrack/internal/domain/repository"
	"timetrack/internal/platform/config"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type testApp struct {
	srv    *httptest.Server
	clock  fakeClock
	hub    *live.Hub
	worker *worker.BroadcastWorker
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	authService := service.NewAuthService(
		repository.NewMemoryUserRepository(),
		repository.NewMemorySessionRepository(clock),
		security.NewTokenAuth([]byte("router-test-secret")),
		time.Hour,
		clock,
	)
	timerService := service.NewTimerService(repository.NewMemoryTimerRepository(), nil, clock)
	cookies := handler.NewSessionCookies(security.NewCookieCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour), time.Hour, false)
	hub := live.NewHub(live.DefaultConfig())

	srv := httptest.NewServer(NewRouter(RouterConfig{CORSOrigin: "*"}, authService, timerService, cookies, hub))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})

	return &testApp{
		srv:    srv,
		clock:  clock,
		hub:    hub,
		worker: worker.NewBroadcastWorker(timerService, hub, clock, time.Second, config.ScopeOwner),
	}
}

// browser is an HTTP client with its own cookie jar that never follows
// redirects.
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) do(t *testing.T, c *http.Client, method, path, token, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testApp) signup(t *testing.T, c *http.Client, username string) (token, userID string) {
	t.Helper()
	resp, body := a.do(t, c, http.MethodPost, "/signup", "", "application/json",
		`{"username":"`+username+`","password":"pw"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.User.ID
}

func (a *testApp) dial(t *testing.T, c *http.Client, path string) (*websocket.Conn, error) {
	t.Helper()
	dialer := websocket.Dialer{Jar: c.Jar, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(a.srv.URL, "http")+path, nil)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, err
}

func TestRouter_Health(t *testing.T) {
	app := newTestApp(t)
	resp, body := app.do(t, http.DefaultClient, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestRouter_TimerLifecycle(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	token, userID := app.signup(t, c, "alice")

	resp, body := app.do(t, c, http.MethodPost, "/timer", token, "application/json", `{"description":"write report"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Timer model.Timer `json:"timer"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, userID, created.Timer.UserID)
	assert.True(t, created.Timer.IsActive)

	app.clock.Advance(3 * time.Second)
	resp, body = app.do(t, c, http.MethodGet, "/timer/update", token, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list model.TimerList
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Timers, 1)
	assert.Equal(t, int64(3), list.Timers[0].DurationInSeconds)

	resp, body = app.do(t, c, http.MethodPost, "/timer/stop/"+created.Timer.ID, token, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var stopped service.StopTimerResponse
	require.NoError(t, json.Unmarshal(body, &stopped))
	assert.Equal(t, "Timer stopped successfully", stopped.Message)
	assert.Equal(t, int64(3), stopped.Timer.DurationInSeconds)
	assert.False(t, stopped.Timer.IsActive)

	app.clock.Advance(10 * time.Second)
	_, body = app.do(t, c, http.MethodGet, "/timer/update", token, "", "")
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, int64(3), list.Timers[0].DurationInSeconds, "stopped timers are frozen")

	resp, body = app.do(t, c, http.MethodPost, "/timer/stop/"+created.Timer.ID, token, "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Timer is already stopped"}`, string(body))
}

func TestRouter_TimerErrors(t *testing.T) {
	app := newTestApp(t)
	owner := app.browser(t)
	ownerToken, _ := app.signup(t, owner, "owner")
	other := app.browser(t)
	otherToken, _ := app.signup(t, other, "other")

	_, body := app.do(t, owner, http.MethodPost, "/timer", ownerToken, "application/json", `{"description":"mine"}`)
	var created struct {
		Timer model.Timer `json:"timer"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	tests := []struct {
		name  string
		path  string
		token string
		body  string
		want  int
	}{
		{"no token", "/timer/update", "", "", http.StatusUnauthorized},
		{"tampered token", "/timer/update", ownerToken + "x", "", http.StatusForbidden},
		{"empty description", "/timer", ownerToken, `{"description":"  "}`, http.StatusBadRequest},
		{"malformed json", "/timer", ownerToken, `{`, http.StatusBadRequest},
		{"malformed id", "/timer/stop/123", ownerToken, "", http.StatusBadRequest},
		{"unknown id", "/timer/stop/8a3c1a4e-1111-4c4b-9a55-1b2c3d4e5f60", ownerToken, "", http.StatusNotFound},
		{"not owner", "/timer/stop/" + created.Timer.ID, otherToken, "", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method := http.MethodPost
			if strings.HasSuffix(tc.path, "/update") {
				method = http.MethodGet
			}
			resp, body := app.do(t, owner, method, tc.path, tc.token, "application/json", tc.body)
			assert.Equal(t, tc.want, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}

	_, body = app.do(t, owner, http.MethodGet, "/timer/update", ownerToken, "", "")
	var list model.TimerList
	require.NoError(t, json.Unmarshal(body, &list))
	assert.True(t, list.Timers[0].IsActive, "rejected stop must leave the timer running")
}

func TestRouter_SignupDuplicate(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, app.browser(t), "bob")

	resp, body := app.do(t, app.browser(t), http.MethodPost, "/signup", "", "application/json", `{"username":"bob","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"User with that username already exists"}`, string(body))
}

func TestRouter_Login(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, app.browser(t), "carol")

	t.Run("json failure is 401", func(t *testing.T) {
		resp, _ := app.do(t, app.browser(t), http.MethodPost, "/login", "", "application/json", `{"username":"carol","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("form failure redirects home", func(t *testing.T) {
		c := app.browser(t)
		req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/login",
			strings.NewReader(url.Values{"username": {"carol"}, "password": {"wrong"}}.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
	})

	t.Run("form success renders page and sets cookies", func(t *testing.T) {
		c := app.browser(t)
		req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/login",
			strings.NewReader(url.Values{"username": {"carol"}, "password": {"pw"}}.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := c.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "window.AUTH_TOKEN = \"ey")
		assert.Contains(t, string(body), "carol")

		names := map[string]bool{}
		for _, ck := range resp.Cookies() {
			names[ck.Name] = true
			assert.True(t, ck.HttpOnly, ck.Name)
		}
		assert.True(t, names[handler.SessionCookieName])
		assert.True(t, names[handler.TokenCookieName])
	})
}

func TestRouter_LiveBroadcast(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	token, _ := app.signup(t, c, "dana")
	resp, _ := app.do(t, c, http.MethodPost, "/timer", token, "application/json", `{"description":"focus"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	first, err := app.dial(t, c, "/")
	require.NoError(t, err)
	second, err := app.dial(t, c, "/ws")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return app.hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	app.clock.Advance(2 * time.Second)
	assert.Equal(t, 2, app.worker.Tick(context.Background()))

	read := func(conn *websocket.Conn) []byte {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		return msg
	}
	a, b := read(first), read(second)
	assert.Equal(t, a, b)

	var list model.TimerList
	require.NoError(t, json.Unmarshal(a, &list))
	require.Len(t, list.Timers, 1)
	assert.Equal(t, "focus", list.Timers[0].Description)
	assert.Equal(t, int64(2), list.Timers[0].DurationInSeconds)
}

func TestRouter_LiveSurvivesLargeInboundFrame(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	token, _ := app.signup(t, c, "erin")
	resp, _ := app.do(t, c, http.MethodPost, "/timer", token, "application/json", `{"description":"chatty"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn, err := app.dial(t, c, "/ws")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return app.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, bytes.Repeat([]byte("x"), 4096)))

	// the server reads frames in order, so its pong means the large frame was consumed
	delivered := -1
	conn.SetPongHandler(func(string) error {
		delivered = app.worker.Tick(context.Background())
		return nil
	})
	require.NoError(t, conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, app.hub.Count())

	var list model.TimerList
	require.NoError(t, json.Unmarshal(msg, &list))
	require.Len(t, list.Timers, 1)
	assert.Equal(t, "chatty", list.Timers[0].Description)
}

func TestRouter_LiveRejectsWithoutSession(t *testing.T) {
	app := newTestApp(t)

	conn, err := app.dial(t, app.browser(t), "/")
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, 0, app.hub.Count())
}

func TestRouter_LogoutEndsLiveAdmission(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)
	app.signup(t, c, "eve")

	resp, body := app.do(t, c, http.MethodGet, "/logout", "", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"user":null,"token":""}`, string(body))

	conn, err := app.dial(t, c, "/ws")
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestRouter_IndexPage(t *testing.T) {
	app := newTestApp(t)
	resp, err := http.Get(app.srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `action="/signup"`)
}
