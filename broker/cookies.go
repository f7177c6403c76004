package broker

import (
	"net/http"
	"time"
)

var _ CookieStore = (*HTTPCookies)(nil)

// HTTPCookies is a CookieStore over net/http. Values set during the request
// are visible to later Gets on the same HTTPCookies.
type HTTPCookies struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
	set    map[string]*string
}

func NewHTTPCookies(w http.ResponseWriter, r *http.Request, secure bool) *HTTPCookies {
	return &HTTPCookies{w: w, r: r, secure: secure, set: make(map[string]*string)}
}

func (c *HTTPCookies) Get(name string) (string, bool) {
	if v, ok := c.set[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	cookie, err := c.r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *HTTPCookies) Set(name, value string, maxAge time.Duration) {
	c.set[name] = &value
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *HTTPCookies) Delete(name string) {
	c.set[name] = nil
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
