// Package keystore reads and writes the upstream API key from a configurable backend.
//
// The proxy reads the key once at startup. Writes are used by the CLI to provision or clear
// the key; the environment backend is read-only.
package keystore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no key is stored.
var ErrNotFound = errors.New("api key not found")

// ErrReadOnly is returned by Write on backends that cannot be modified.
var ErrReadOnly = errors.New("key store is read-only")

// Store persists a single API key. Writing an empty key clears it.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, key string) error
}
