package handler

import (
	"net/http"
	"time"
	"timetrack/internal/common/security"

	"github.com/rs/zerolog/log"
)

const (
	SessionCookieName = "sid"
	TokenCookieName   = "token"
)

// SessionCookies issues and reads the signed session cookie and the
// http-only token cookie.
type SessionCookies struct {
	codec  *security.CookieCodec
	maxAge time.Duration
	secure bool
}

func NewSessionCookies(codec *security.CookieCodec, maxAge time.Duration, secure bool) *SessionCookies {
	return &SessionCookies{codec: codec, maxAge: maxAge, secure: secure}
}

func (c *SessionCookies) SetSession(w http.ResponseWriter, sessionID string) error {
	encoded, err := c.codec.Encode(SessionCookieName, sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(SessionCookieName, encoded, int(c.maxAge/time.Second)))
	return nil
}

// SessionID returns the verified session id, or "" when the cookie is
// missing or was not signed by us.
func (c *SessionCookies) SessionID(r *http.Request) string {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	id, err := c.codec.Decode(SessionCookieName, ck.Value)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring invalid session cookie")
		return ""
	}
	return id
}

func (c *SessionCookies) SetToken(w http.ResponseWriter, token string) {
	// session cookie: no Max-Age, like the token itself it has no expiry
	http.SetCookie(w, c.cookie(TokenCookieName, token, 0))
}

func (c *SessionCookies) Token(r *http.Request) string {
	ck, err := r.Cookie(TokenCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(SessionCookieName, "", -1))
	http.SetCookie(w, c.cookie(TokenCookieName, "", -1))
}

func (c *SessionCookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
