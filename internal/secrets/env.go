package secrets

import (
	"context"
	"fmt"
	"os"
)

// Environment variables backing the env store.
const (
	EnvAccessToken  = "AIDO_ACCESS_TOKEN"
	EnvRefreshToken = "AIDO_REFRESH_TOKEN"
)

// EnvStore reads secrets from environment variables. It is read-only:
// refreshed tokens cannot be written back, so it is only suitable for
// short-lived invocations with a long-lived token.
type EnvStore struct{}

// NewEnvStore creates a new environment-backed secret store
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func (e *EnvStore) Get(_ context.Context, key string) (string, error) {
	switch key {
	case KeyAccessToken:
		return os.Getenv(EnvAccessToken), nil
	case KeyRefreshToken:
		return os.Getenv(EnvRefreshToken), nil
	}
	return "", nil
}

func (e *EnvStore) Set(_ context.Context, key, _ string) error {
	return fmt.Errorf("environment secret store is read-only, cannot set %q", key)
}

func (e *EnvStore) Remove(_ context.Context, key string) error {
	return fmt.Errorf("environment secret store is read-only, cannot remove %q", key)
}
