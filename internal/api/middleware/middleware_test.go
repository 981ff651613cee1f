package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*model.Principal, error) {
	switch token {
	case "":
		return nil, common.NewError(common.ErrUnauthorized, "Access denied. No token provided.")
	case "good":
		return &model.Principal{UserID: "u1", Username: "alice"}, nil
	default:
		return nil, common.NewError(common.ErrForbidden, "Invalid token")
	}
}

func TestAuthenticator(t *testing.T) {
	var gotID, gotName string
	h := Authenticator(stubVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserIDFromContext(r.Context())
		gotName, _ = GetUsernameFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"tampered", "Bearer bad", http.StatusForbidden},
		{"wrong scheme", "Token good", http.StatusForbidden},
		{"bearer without token", "Bearer", http.StatusForbidden},
		{"valid", "Bearer good", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/timer/update", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Equal(t, "u1", gotID)
	assert.Equal(t, "alice", gotName)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/timer", nil))

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/timer"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestRequestLogger_WebsocketUpgrade(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	// an upgraded handler hijacks the conn and never writes through the wrapper
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"status":101`)
	assert.Contains(t, out, `"level":"info"`)
}
