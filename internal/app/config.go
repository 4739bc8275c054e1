package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/gemini-proxy/internal/keystore"
)

// KeyStorageType selects where the upstream API key is read from.
type KeyStorageType string

const (
	KeyStorageTypeEnv     KeyStorageType = "env"
	KeyStorageTypeFile    KeyStorageType = "file"
	KeyStorageTypeKeyring KeyStorageType = "keyring"
)

// Config is the complete application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Upstream      UpstreamConfig      `koanf:"upstream"`
	Auth          AuthConfig          `koanf:"auth"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	MaxRequestBytes int64         `koanf:"max_request_bytes" validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// UpstreamConfig configures calls to the Gemini API.
type UpstreamConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,http_url"`
	Model   string        `koanf:"model" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// AuthConfig configures where the upstream API key is stored.
type AuthConfig struct {
	Storage        KeyStorageType `koanf:"storage" validate:"oneof=env file keyring"`
	EnvVar         string         `koanf:"env_var" validate:"required_if=Storage env"`
	File           string         `koanf:"file" validate:"required_if=Storage file"`
	KeyringService string         `koanf:"keyring_service" validate:"required_if=Storage keyring"`
	KeyringUser    string         `koanf:"keyring_user" validate:"required_if=Storage keyring"`
}

// ObservabilityConfig configures optional OpenTelemetry log export.
type ObservabilityConfig struct {
	Exporter string `koanf:"exporter" validate:"omitempty,oneof=stdout otlp-grpc otlp-http"`
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// Defaults returns the flattened configuration used when no source overrides a value.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":              "127.0.0.1:4000",
		"server.max_request_bytes": int64(1 << 20),
		"server.read_timeout":      "10s",
		"server.write_timeout":     "60s",
		"server.idle_timeout":      "120s",
		"server.shutdown_timeout":  "5s",

		"upstream.base_url": "https://generativelanguage.googleapis.com",
		"upstream.model":    "gemini-pro",
		"upstream.timeout":  "30s",

		"auth.storage":         string(KeyStorageTypeEnv),
		"auth.env_var":         "GEMINI_API_KEY",
		"auth.keyring_service": "gemini-proxy",
		"auth.keyring_user":    "api-key",
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Server.WriteTimeout <= c.Upstream.Timeout {
		return fmt.Errorf("invalid config: server.write_timeout (%s) must exceed upstream.timeout (%s)",
			c.Server.WriteTimeout, c.Upstream.Timeout)
	}
	return nil
}

// NewKeyStore creates the configured key store. environ is consulted by the env storage only.
func (a AuthConfig) NewKeyStore(environ func() []string) (keystore.Store, error) {
	switch a.Storage {
	case KeyStorageTypeEnv:
		return keystore.NewEnvStore(a.EnvVar, environ), nil
	case KeyStorageTypeFile:
		return keystore.NewFileStore(a.File), nil
	case KeyStorageTypeKeyring:
		return keystore.NewKeyringStore(a.KeyringService, a.KeyringUser), nil
	default:
		return nil, fmt.Errorf("unsupported key storage %q", a.Storage)
	}
}
