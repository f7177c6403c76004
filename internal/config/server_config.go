package config

import "time"

const (
	brokersTableEnvVar    = "SSO_BROKERS_TABLE"
	attachmentStoreEnvVar = "SSO_ATTACHMENT_STORE"
	attachmentTTLEnvVar   = "SSO_ATTACHMENT_TTL"
	redisAddrEnvVar       = "REDIS_ADDR"
	loginFieldEnvVar      = "SSO_LOGIN_FIELD"
	adminEmailEnvVar      = "SSO_ADMIN_EMAIL"
	adminPasswordEnvVar   = "SSO_ADMIN_PASSWORD"
)

// ServerConfig holds the settings of the SSO server.
type ServerConfig interface {
	GetBrokersTable() string
	GetUserFields() map[string]string
	GetSeedBrokers() []BrokerSeed
	GetAttachmentStore() string
	GetAttachmentTTL() time.Duration
	GetRedisAddr() string
	GetLoginField() string
	GetAdminEmail() string
	GetAdminPassword() string
}

var _ ServerConfig = mainConfig{}

func (c mainConfig) GetBrokersTable() string {
	return c.lookup(brokersTableEnvVar, c.file.BrokersTable, "brokers")
}

// GetUserFields maps the field names sent to brokers onto user attributes.
func (c mainConfig) GetUserFields() map[string]string {
	if len(c.file.UserFields) > 0 {
		fields := make(map[string]string, len(c.file.UserFields))
		for k, v := range c.file.UserFields {
			fields[k] = v
		}
		return fields
	}
	return map[string]string{
		"id":    "id",
		"email": "email",
	}
}

func (c mainConfig) GetSeedBrokers() []BrokerSeed {
	return append([]BrokerSeed(nil), c.file.Brokers...)
}

// GetAttachmentStore is "memory" or "redis".
func (c mainConfig) GetAttachmentStore() string {
	return c.lookup(attachmentStoreEnvVar, c.file.AttachmentStore, "memory")
}

func (mainConfig) GetAttachmentTTL() time.Duration {
	return GetEnvDuration(attachmentTTLEnvVar, 2*time.Hour)
}

func (c mainConfig) GetRedisAddr() string {
	return c.lookup(redisAddrEnvVar, c.file.RedisAddr, "localhost:6379")
}

// GetLoginField is the user attribute the submitted username is matched
// against: "email" or "username".
func (c mainConfig) GetLoginField() string {
	return c.lookup(loginFieldEnvVar, c.file.LoginField, "email")
}

func (mainConfig) GetAdminEmail() string {
	return GetEnv(adminEmailEnvVar, "admin@localhost")
}

// GetAdminPassword is empty when a password should be generated.
func (mainConfig) GetAdminPassword() string {
	return GetEnv(adminPasswordEnvVar, "")
}
