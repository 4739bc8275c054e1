package keystore

import (
	"context"
	"strings"
)

// EnvStore reads the key from an environment variable.
type EnvStore struct {
	name    string
	environ func() []string
}

// Compile-time check that EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates a store reading variable name from environ, usually os.Environ.
func NewEnvStore(name string, environ func() []string) *EnvStore {
	return &EnvStore{name: name, environ: environ}
}

// Read returns the variable's value, or ErrNotFound when it is unset or blank.
func (s *EnvStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Last occurrence wins, matching os.Getenv on duplicated entries
	var value string
	for _, kv := range s.environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k == s.name {
			value = v
		}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Write always fails: the process environment is managed by the deployment.
func (s *EnvStore) Write(context.Context, string) error {
	return ErrReadOnly
}
