package auth

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/example/linkstash/internal/config"
	"github.com/gorilla/securecookie"
)

// SessionTTL bounds both the cookie and the server-side session row.
const SessionTTL = 7 * 24 * time.Hour

const sessionCookieName = "linkstash_session"

type sessionCookie struct {
	Token string `json:"token"`
	Exp   int64  `json:"exp"`
}

// SessionManager encodes the server-side session token into an encrypted
// cookie. The token itself is only a handle; the sessions table is the
// source of truth for validity and expiry.
type SessionManager struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	sc := securecookie.New(hash[:], hash[:])
	sc.MaxAge(int(SessionTTL / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{codec: sc, secure: secure}
}

// Issue sets the session cookie carrying the given session token.
func (m *SessionManager) Issue(w http.ResponseWriter, token string) error {
	value := sessionCookie{
		Token: token,
		Exp:   time.Now().Add(SessionTTL).Unix(),
	}

	encoded, err := m.codec.Encode(sessionCookieName, value)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(SessionTTL),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// Token extracts the session token from the request cookie if present and
// not yet expired.
func (m *SessionManager) Token(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}

	var value sessionCookie
	if err := m.codec.Decode(sessionCookieName, c.Value, &value); err != nil {
		return "", false
	}
	if value.Token == "" || time.Unix(value.Exp, 0).Before(time.Now()) {
		return "", false
	}
	return value.Token, true
}
