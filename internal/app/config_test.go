package app

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := testConfig()
	cfg.Server.Addr = "127.0.0.1:4000"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"addr without port", func(c *Config) { c.Server.Addr = "localhost" }, true},
		{"zero request limit", func(c *Config) { c.Server.MaxRequestBytes = 0 }, true},
		{"zero upstream timeout", func(c *Config) { c.Upstream.Timeout = 0 }, true},
		{"write timeout below upstream timeout", func(c *Config) { c.Server.WriteTimeout = 10 * time.Second }, true},
		{"invalid base url", func(c *Config) { c.Upstream.BaseURL = "not a url" }, true},
		{"missing model", func(c *Config) { c.Upstream.Model = "" }, true},
		{"unknown storage", func(c *Config) { c.Auth.Storage = "vault" }, true},
		{"env storage without variable", func(c *Config) { c.Auth.EnvVar = "" }, true},
		{"file storage without path", func(c *Config) { c.Auth.Storage = KeyStorageTypeFile }, true},
		{"file storage with path", func(c *Config) {
			c.Auth.Storage = KeyStorageTypeFile
			c.Auth.File = "/tmp/key"
		}, false},
		{"keyring storage without service", func(c *Config) { c.Auth.Storage = KeyStorageTypeKeyring }, true},
		{"keyring storage", func(c *Config) {
			c.Auth.Storage = KeyStorageTypeKeyring
			c.Auth.KeyringService = "gemini-proxy"
			c.Auth.KeyringUser = "api-key"
		}, false},
		{"unknown exporter", func(c *Config) { c.Observability.Exporter = "zipkin" }, true},
		{"otlp exporter", func(c *Config) { c.Observability.Exporter = "otlp-grpc" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewKeyStore(t *testing.T) {
	tests := []struct {
		storage KeyStorageType
		want    string
	}{
		{KeyStorageTypeEnv, "*keystore.EnvStore"},
		{KeyStorageTypeFile, "*keystore.FileStore"},
		{KeyStorageTypeKeyring, "*keystore.KeyringStore"},
	}

	for _, tt := range tests {
		t.Run(string(tt.storage), func(t *testing.T) {
			store, err := AuthConfig{Storage: tt.storage}.NewKeyStore(os.Environ)
			if err != nil {
				t.Fatalf("NewKeyStore: %v", err)
			}
			if got := fmt.Sprintf("%T", store); got != tt.want {
				t.Errorf("store type = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := (AuthConfig{Storage: "vault"}).NewKeyStore(os.Environ); err == nil {
		t.Error("expected error for unknown storage")
	}
}

func TestDefaultsAreComplete(t *testing.T) {
	defaults := Defaults()
	for _, key := range []string{
		"server.addr",
		"server.max_request_bytes",
		"server.shutdown_timeout",
		"upstream.base_url",
		"upstream.model",
		"upstream.timeout",
		"auth.storage",
		"auth.env_var",
	} {
		if _, ok := defaults[key]; !ok {
			t.Errorf("missing default for %s", key)
		}
	}
}
