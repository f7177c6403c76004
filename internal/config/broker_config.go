package config

import (
	"time"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

const (
	serverURLEnvVar      = "SSO_SERVER_URL"
	brokerNameEnvVar     = "SSO_BROKER_NAME"
	brokerSecretEnvVar   = "SSO_BROKER_SECRET"
	tokenLifetimeEnvVar  = "SSO_TOKEN_LIFETIME"
	commandTimeoutEnvVar = "SSO_COMMAND_TIMEOUT"
	sessionIDFormatVar   = "SSO_SESSION_ID_FORMAT"
	usersTableEnvVar     = "SSO_USERS_TABLE"
	usernameEnvVar       = "SSO_USERNAME_FIELD"
	remoteUsernameEnvVar = "SSO_REMOTE_USERNAME_FIELD"
)

// BrokerConfig holds the settings a broker needs to talk to the server.
type BrokerConfig interface {
	GetServerURL() string
	GetBrokerName() string
	GetBrokerSecret() string
	GetTokenLifetime() time.Duration
	GetCommandTimeout() time.Duration
	GetSessionIDFormat() string
	GetUsersTable() string
	GetUsernameField() string
	GetRemoteUsernameField() string
}

var _ BrokerConfig = mainConfig{}

func (c mainConfig) GetServerURL() string {
	return c.lookup(serverURLEnvVar, c.file.ServerURL, "")
}

func (c mainConfig) GetBrokerName() string {
	return c.lookup(brokerNameEnvVar, c.file.BrokerName, "")
}

func (c mainConfig) GetBrokerSecret() string {
	return c.lookup(brokerSecretEnvVar, c.file.BrokerSecret, "")
}

// GetTokenLifetime is the fixed lifetime of the token cookie, configured in
// minutes.
func (c mainConfig) GetTokenLifetime() time.Duration {
	minutes := GetEnvInt(tokenLifetimeEnvVar, c.file.TokenLifetime)
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

func (mainConfig) GetCommandTimeout() time.Duration {
	return GetEnvDuration(commandTimeoutEnvVar, 10*time.Second)
}

func (c mainConfig) GetSessionIDFormat() string {
	return c.lookup(sessionIDFormatVar, c.file.SessionIDFormat, "checksum")
}

func (c mainConfig) GetUsersTable() string {
	return c.lookup(usersTableEnvVar, c.file.UsersTable, "users")
}

// GetUsernameField is the local user column matched against the remote user.
func (c mainConfig) GetUsernameField() string {
	return c.lookup(usernameEnvVar, c.file.Username, "email")
}

// GetRemoteUsernameField is the field of the server's user payload copied
// into the local username field.
func (c mainConfig) GetRemoteUsernameField() string {
	return c.lookup(remoteUsernameEnvVar, c.file.RemoteUserName, "email")
}

// ValidateBroker fails when the broker identity is incomplete.
func ValidateBroker(c BrokerConfig) error {
	switch {
	case c.GetServerURL() == "":
		return &ssoerrors.ConfigurationError{Field: "serverUrl"}
	case c.GetBrokerName() == "":
		return &ssoerrors.ConfigurationError{Field: "brokerName"}
	case c.GetBrokerSecret() == "":
		return &ssoerrors.ConfigurationError{Field: "brokerSecret"}
	}
	return nil
}
