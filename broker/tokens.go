package broker

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	tokenLength   = 40
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	cookiePrefix  = "sso_token_"
)

var nonWordRuns = regexp.MustCompile(`[_\W]+`)

// CookieName returns the cookie holding the token for brokerName. Brokers
// sharing an origin get distinct cookies.
func CookieName(brokerName string) string {
	return cookiePrefix + nonWordRuns.ReplaceAllString(strings.ToLower(brokerName), "_")
}

// TokenStore keeps the browser's token in a cookie. The cookie has a fixed
// lifetime and is not refreshed when read.
type TokenStore struct {
	cookieName string
	lifetime   time.Duration
}

func NewTokenStore(brokerName string, lifetime time.Duration) *TokenStore {
	return &TokenStore{cookieName: CookieName(brokerName), lifetime: lifetime}
}

func (s *TokenStore) CookieName() string {
	return s.cookieName
}

// EnsureToken returns the token held by the browser, issuing and storing a
// new one when there is none. isNew is true only for a freshly issued token.
func (s *TokenStore) EnsureToken(req *Request) (token string, isNew bool, err error) {
	if req.token != "" {
		return req.token, false, nil
	}
	if t, ok := req.Cookies.Get(s.cookieName); ok && validToken(t) {
		req.token = t
		return t, false, nil
	}

	t, err := generateToken()
	if err != nil {
		return "", false, fmt.Errorf("[broker EnsureToken] %w", err)
	}
	req.Cookies.Set(s.cookieName, t, s.lifetime)
	req.token = t
	req.state = StateTokenIssued
	return t, true, nil
}

// ClearToken deletes the cookie and forgets the token for this request.
func (s *TokenStore) ClearToken(req *Request) {
	req.Cookies.Delete(s.cookieName)
	req.token = ""
	req.state = StateNoToken
}

func generateToken() (string, error) {
	const maxByte = 256 - (256 % len(tokenAlphabet))

	out := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength*2)
	for len(out) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == tokenLength {
				break
			}
		}
	}
	return string(out), nil
}

func validToken(t string) bool {
	if len(t) != tokenLength {
		return false
	}
	for i := 0; i < len(t); i++ {
		if !strings.ContainsRune(tokenAlphabet, rune(t[i])) {
			return false
		}
	}
	return true
}
