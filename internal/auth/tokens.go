package auth

import (
	"context"
	"fmt"

	"github.com/aidoapp/aido-go/internal/secrets"
)

// TokenPair is the access/refresh credential pair issued by the Aido
// backend. Both tokens are opaque bearer strings; the client never
// inspects their contents.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SaveTokenPair persists both tokens to the secret store, overwriting any
// previous pair.
func SaveTokenPair(ctx context.Context, store secrets.Store, pair TokenPair) error {
	if err := store.Set(ctx, secrets.KeyAccessToken, pair.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := store.Set(ctx, secrets.KeyRefreshToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// LoadTokenPair reads the current pair from the secret store. Missing
// tokens come back as empty strings.
func LoadTokenPair(ctx context.Context, store secrets.Store) (TokenPair, error) {
	accessToken, err := store.Get(ctx, secrets.KeyAccessToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refreshToken, err := store.Get(ctx, secrets.KeyRefreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ClearTokenPair removes both tokens, implicitly logging the user out.
// Both removals are attempted even if the first fails.
func ClearTokenPair(ctx context.Context, store secrets.Store) error {
	accessErr := store.Remove(ctx, secrets.KeyAccessToken)
	refreshErr := store.Remove(ctx, secrets.KeyRefreshToken)
	if accessErr != nil {
		return fmt.Errorf("failed to clear access token: %w", accessErr)
	}
	if refreshErr != nil {
		return fmt.Errorf("failed to clear refresh token: %w", refreshErr)
	}
	return nil
}
