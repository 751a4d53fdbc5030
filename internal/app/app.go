// Package app is the composition root: it turns configuration into a
// wired secret store, authenticated client, and API service.
package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aidoapp/aido-go/internal/api"
	"github.com/aidoapp/aido-go/internal/client"
	"github.com/aidoapp/aido-go/internal/config"
	"github.com/aidoapp/aido-go/internal/secrets"
)

// NewSecretStore builds the secret store backend named by the config
func NewSecretStore(cfg *config.Config, logger zerolog.Logger) (secrets.Store, error) {
	switch cfg.Secrets.Backend {
	case "memory":
		return secrets.NewMemoryStore(), nil
	case "env":
		logger.Info().Msg("Using environment secret store (read-only, refreshed tokens will not persist)")
		return secrets.NewEnvStore(), nil
	case "keychain":
		return secrets.NewKeychainStore(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Secrets.Redis})
		return secrets.NewRedisStore(rdb, ""), nil
	case "fs":
		path := cfg.Secrets.Path
		if path == "" {
			path = secrets.DefaultSecretsPath()
		}
		if path == "" {
			return nil, fmt.Errorf("could not determine secrets path, set secrets.path")
		}
		logger.Debug().Str("path", path).Msg("Using file secret store")
		return secrets.NewFileStore(path), nil
	}
	return nil, fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
}

// NewService wires the authenticated client and the API service, and
// installs the client as the process-wide default. The secret store is
// returned so the caller can inspect credential state.
func NewService(cfg *config.Config, logger zerolog.Logger) (*api.Service, secrets.Store, error) {
	store, err := NewSecretStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	c := client.New(cfg.BaseURL, store,
		client.WithTimeout(cfg.RequestTimeout.Duration),
		client.WithLogger(logger),
	)
	client.SetDefault(c)

	return api.New(c, store), store, nil
}
