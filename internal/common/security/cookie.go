package security

import (
	"time"

	"github.com/gorilla/securecookie"
)

// CookieCodec signs cookie values with an HMAC so a client cannot forge a
// session id. Values are not encrypted.
type CookieCodec struct {
	sc *securecookie.SecureCookie
}

func NewCookieCodec(hashKey []byte, maxAge time.Duration) *CookieCodec {
	sc := securecookie.New(hashKey, nil)
	sc.MaxAge(int(maxAge / time.Second))
	return &CookieCodec{sc: sc}
}

func (c *CookieCodec) Encode(name, value string) (string, error) {
	return c.sc.Encode(name, value)
}

func (c *CookieCodec) Decode(name, encoded string) (string, error) {
	var value string
	if err := c.sc.Decode(name, encoded, &value); err != nil {
		return "", err
	}
	return value, nil
}
