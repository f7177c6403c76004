package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-sso/internal/config"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"github.com/stretchr/testify/require"
)

const testFile = `
type: broker
serverUrl: https://sso.example.com
brokerName: Acme
brokerSecret: from-file
tokenLifetime: 15
username: email
remoteUserName: email
userFields:
  id: id
  email: email
  name: first_name
brokers:
  - name: Acme
    secret: acme-secret
    origin: https://acme.example.com
`

func TestConfig_FileAndEnv(t *testing.T) {
	f, err := config.ParseFile([]byte(testFile))
	require.NoError(t, err)

	t.Run("file values", func(t *testing.T) {
		c := config.NewFromFile(f)
		require.Equal(t, config.ModeBroker, c.GetMode())
		require.Equal(t, "https://sso.example.com", c.GetServerURL())
		require.Equal(t, "from-file", c.GetBrokerSecret())
		require.Equal(t, 15*time.Minute, c.GetTokenLifetime())
		require.Equal(t, "first_name", c.GetUserFields()["name"])
		require.Len(t, c.GetSeedBrokers(), 1)
		require.NoError(t, config.Validate(c))
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("SSO_BROKER_SECRET", "from-env")
		t.Setenv("SSO_TOKEN_LIFETIME", "5")
		c := config.NewFromFile(f)
		require.Equal(t, "from-env", c.GetBrokerSecret())
		require.Equal(t, 5*time.Minute, c.GetTokenLifetime())
	})
}

func TestConfig_Defaults(t *testing.T) {
	c := config.NewFromFile(nil)
	require.Equal(t, config.ModeServer, c.GetMode())
	require.Equal(t, time.Hour, c.GetTokenLifetime())
	require.Equal(t, 10*time.Second, c.GetCommandTimeout())
	require.Equal(t, map[string]string{"id": "id", "email": "email"}, c.GetUserFields())
	require.Equal(t, "brokers", c.GetBrokersTable())
	require.Equal(t, "checksum", c.GetSessionIDFormat())
	require.Equal(t, ":8080", c.GetPort())
	require.NoError(t, config.Validate(c))
}

func TestValidateBroker_MissingIdentity(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"no server url", map[string]string{"SSO_BROKER_NAME": "Acme", "SSO_BROKER_SECRET": "s"}, "serverUrl"},
		{"no name", map[string]string{"SSO_SERVER_URL": "http://sso", "SSO_BROKER_SECRET": "s"}, "brokerName"},
		{"no secret", map[string]string{"SSO_SERVER_URL": "http://sso", "SSO_BROKER_NAME": "Acme"}, "brokerSecret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SSO_TYPE", "broker")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := config.Validate(config.NewFromFile(nil))
			var cfgErr *ssoerrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	t.Setenv("SSO_TYPE", "proxy")
	require.True(t, ssoerrors.IsConfiguration(config.Validate(config.NewFromFile(nil))))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sso.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFile), 0o600))

	t.Setenv("SSO_CONFIG_FILE", path)
	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "Acme", c.GetBrokerName())

	_, err = config.ParseFile([]byte("brokers:\n  - name: missing-secret\n"))
	require.Error(t, err)
}
