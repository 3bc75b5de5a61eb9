package session

import (
	"net/http"
	"time"
)

// Cookies writes and clears the session cookie. Attributes are fixed per
// deployment; only remember-me logins get an explicit expiry.
type Cookies struct {
	Name        string
	Domain      string
	Secure      bool
	RememberFor time.Duration
	now         func() time.Time
}

func NewCookies(name, domain string, secure bool, rememberDays int) *Cookies {
	if name == "" {
		name = "jwt"
	}
	return &Cookies{
		Name:        name,
		Domain:      domain,
		Secure:      secure,
		RememberFor: time.Duration(rememberDays) * 24 * time.Hour,
		now:         time.Now,
	}
}

func (c *Cookies) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Set writes token. Without remember the cookie lives for the browser session.
func (c *Cookies) Set(w http.ResponseWriter, token string, remember bool) {
	ck := c.base()
	ck.Value = token
	if remember && c.RememberFor > 0 {
		ck.Expires = c.now().Add(c.RememberFor)
	}
	http.SetCookie(w, ck)
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	ck := c.base()
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

// Read returns the raw token from the request, or "".
func (c *Cookies) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}
