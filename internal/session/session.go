// Package session implements the signed session cookie and the one-shot
// flash message cookie. The session value is the lowered username plus an
// HMAC-SHA256 tag; a cookie that fails verification is treated the same as
// no cookie at all.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
)

const flashCookie = "flash"

// Manager signs and verifies the session identity cookie.
type Manager struct {
	secret     []byte
	cookieName string
}

// NewManager creates a session manager. The secret must be non-empty; an
// empty secret would make every forged cookie verify.
func NewManager(secret, cookieName string) *Manager {
	return &Manager{secret: []byte(secret), cookieName: cookieName}
}

// sign creates a HMAC-SHA256 tag for the given value.
func (m *Manager) sign(value string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// Issue binds the session to the given username.
func (m *Manager) Issue(w http.ResponseWriter, username string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    username + "|" + m.sign(username),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes the session cookie unconditionally.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Current returns the authenticated username, or ok=false when the cookie
// is absent, malformed or carries a bad signature.
func (m *Manager) Current(r *http.Request) (username string, ok bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	value, tag, found := strings.Cut(cookie.Value, "|")
	if !found || value == "" {
		return "", false
	}
	expected := m.sign(value)
	if !hmac.Equal([]byte(tag), []byte(expected)) {
		return "", false
	}
	return value, true
}

// Flash queues a message to be shown on the next rendered page.
func Flash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
	})
}

// TakeFlash reads and clears the pending flash message, if any.
func TakeFlash(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:   flashCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return "", false
	}
	return message, true
}
