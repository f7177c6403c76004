package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the optional YAML configuration file. Environment variables take
// precedence over the values found here.
type File struct {
	Type            string            `yaml:"type"`
	ServerURL       string            `yaml:"serverUrl"`
	BrokerName      string            `yaml:"brokerName"`
	BrokerSecret    string            `yaml:"brokerSecret"`
	TokenLifetime   int               `yaml:"tokenLifetime"`
	SessionIDFormat string            `yaml:"sessionIdFormat"`
	UsersTable      string            `yaml:"usersTable"`
	Username        string            `yaml:"username"`
	RemoteUserName  string            `yaml:"remoteUserName"`
	BrokersTable    string            `yaml:"brokersTable"`
	UserFields      map[string]string `yaml:"userFields"`
	Brokers         []BrokerSeed      `yaml:"brokers"`
	AttachmentStore string            `yaml:"attachmentStore"`
	RedisAddr       string            `yaml:"redisAddr"`
	LoginField      string            `yaml:"loginField"`
}

// BrokerSeed registers a broker with the server at startup.
type BrokerSeed struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
	Origin string `yaml:"origin"`
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config LoadFile] reading %s: %w", path, err)
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("[config ParseFile] %w", err)
	}
	for i, b := range f.Brokers {
		if b.Name == "" || b.Secret == "" {
			return nil, fmt.Errorf("[config ParseFile] broker %d: name and secret are required", i)
		}
	}
	return f, nil
}
