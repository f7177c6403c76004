// Package broker lets an application delegate its logins to an SSO server.
//
// The browser holds a random token in a cookie. The broker derives a session
// id from that token and its own identity and sends it as a bearer credential
// with every command. Before anything else the session id is attached on the
// server, after which the server can tie a login to it.
package broker

import (
	"fmt"
	"net/url"
	"time"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/jrsteele09/go-sso/sessionid"
	"github.com/rs/zerolog"
)

const DefaultTokenLifetime = 60 * time.Minute

// Config is the broker's identity and behaviour.
type Config struct {
	ServerURL      string
	Name           string
	Secret         string
	TokenLifetime  time.Duration
	CommandTimeout time.Duration
	// RemoteField is the field of the server's identity payload matched
	// against the local user repository's lookup field.
	RemoteField string
}

type Broker struct {
	cfg      Config
	identity sessionid.Identity
	users    UserRepository
	tokens   *TokenStore
	client   *CommandClient
	logger   zerolog.Logger

	doer           HTTPDoer
	retry          *RetryPolicy
	metrics        *Metrics
	redirectBearer bool
}

type Option func(*Broker)

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

func WithHTTPClient(doer HTTPDoer) Option {
	return func(b *Broker) { b.doer = doer }
}

// WithRetry retries commands that fail to reach the server.
func WithRetry(policy RetryPolicy) Option {
	return func(b *Broker) { b.retry = &policy }
}

func WithMetrics(m *Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// WithIdentity replaces the default checksum session id derivation.
func WithIdentity(identity sessionid.Identity) Option {
	return func(b *Broker) { b.identity = identity }
}

// WithRedirectBearerHeader also sets the Authorization header on the redirect
// to the server's login page. Browsers do not forward it, so it only helps
// non-browser callers that follow the redirect themselves.
func WithRedirectBearerHeader(enabled bool) Option {
	return func(b *Broker) { b.redirectBearer = enabled }
}

// New validates cfg and returns a broker. A missing server URL, name or
// secret is a *errors.ConfigurationError.
func New(cfg Config, users UserRepository, opts ...Option) (*Broker, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if users == nil {
		return nil, &ssoerrors.ConfigurationError{Field: "userRepository"}
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}
	if cfg.RemoteField == "" {
		cfg.RemoteField = "email"
	}

	b := &Broker{
		cfg:      cfg,
		identity: sessionid.Checksum{},
		users:    users,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.tokens = NewTokenStore(cfg.Name, cfg.TokenLifetime)
	b.client = NewCommandClient(cfg.ServerURL, b.doer, cfg.CommandTimeout)
	b.client.retry = b.retry
	b.client.metrics = b.metrics
	b.client.logger = b.logger.With().Str("broker", cfg.Name).Logger()
	return b, nil
}

func validateConfig(cfg Config) error {
	if cfg.ServerURL == "" {
		return &ssoerrors.ConfigurationError{Field: "serverUrl"}
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ssoerrors.ConfigurationError{Field: "serverUrl", Reason: fmt.Sprintf("%q is not an absolute http(s) URL", cfg.ServerURL)}
	}
	if cfg.Name == "" {
		return &ssoerrors.ConfigurationError{Field: "brokerName"}
	}
	if cfg.Secret == "" {
		return &ssoerrors.ConfigurationError{Field: "brokerSecret"}
	}
	return nil
}

func (b *Broker) Name() string {
	return b.cfg.Name
}

func (b *Broker) Tokens() *TokenStore {
	return b.tokens
}

func (b *Broker) Client() *CommandClient {
	return b.client
}

// SessionID returns the bearer credential for the token held by req. It
// fails with ErrNotAttached when req has no token yet.
func (b *Broker) SessionID(req *Request) (string, error) {
	if req.token == "" {
		return "", fmt.Errorf("[broker SessionID] no token: %w", ssoerrors.ErrNotAttached)
	}
	return b.sessionID(req.token)
}

func (b *Broker) sessionID(token string) (string, error) {
	sid, err := b.identity.SessionID(token, sessionid.Broker{Name: b.cfg.Name, Secret: b.cfg.Secret})
	if err != nil {
		return "", fmt.Errorf("[broker SessionID] %w", err)
	}
	return sid, nil
}
