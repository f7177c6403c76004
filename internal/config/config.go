package config

import (
	"fmt"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// Mode selects which side of the SSO scheme this process runs.
type Mode string

const (
	ModeServer Mode = "server"
	ModeBroker Mode = "broker"
)

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	BrokerConfig
	ServerConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetMode() Mode
	GetLogLevel() string
	GetDatabaseDriver() string
	GetDatabaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	file *File
}

// New builds the configuration from the environment, layered over the YAML
// file named by SSO_CONFIG_FILE when that variable is set.
func New() (Config, error) {
	file := &File{}
	if path := GetEnv(configFileVar, ""); path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		file = f
	}
	return NewFromFile(file), nil
}

// NewFromFile builds the configuration from an already loaded file.
func NewFromFile(file *File) Config {
	if file == nil {
		file = &File{}
	}
	return mainConfig{file: file}
}

// GetMode prefers the environment over the file; the default is server mode.
func (c mainConfig) GetMode() Mode {
	return Mode(c.lookup(modeEnvVar, c.file.Type, string(ModeServer)))
}

// lookup resolves a value from the environment first, then the file, then
// the default.
func (c mainConfig) lookup(envVar, fileValue, defaultValue string) string {
	if v := GetEnv(envVar, ""); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// Validate checks the settings required by the configured mode.
func Validate(c Config) error {
	switch c.GetMode() {
	case ModeServer:
		return nil
	case ModeBroker:
		return ValidateBroker(c)
	default:
		return &ssoerrors.ConfigurationError{Field: "type", Reason: fmt.Sprintf("unknown mode %q, expected server or broker", c.GetMode())}
	}
}
