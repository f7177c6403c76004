package config

import "time"

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetSecureCookies() bool
	GetLoginRateLimit() int
	GetRedirectBearerHeader() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetMaxSessionAge bounds the local login session kept by either side.
func (Security) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SSO_MAX_SESSION_AGE", 30*time.Minute)
}

func (Security) GetSecureCookies() bool {
	return GetEnvBool("SSO_SECURE_COOKIES", false)
}

// GetLoginRateLimit is the number of login attempts allowed per session id
// per minute.
func (Security) GetLoginRateLimit() int {
	return GetEnvInt("SSO_LOGIN_RATE_LIMIT", 10)
}

// GetRedirectBearerHeader adds the bearer header to the redirect sent to the
// browser. Browsers do not forward it, so it only helps non-browser callers.
func (Security) GetRedirectBearerHeader() bool {
	return GetEnvBool("SSO_REDIRECT_BEARER_HEADER", false)
}
