// Package secrets persists the opaque credentials the Aido client needs
// across restarts: the access token and the refresh token. Backends range
// from an in-memory map for tests to the macOS keychain and Cloudflare KV.
package secrets

import "context"

// Keys under which the client stores its credentials.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Store is the secret store consumed by the HTTP client. A missing key is
// not an error: Get returns ("", nil) so callers can treat absence as
// "send unauthenticated" rather than a failure.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
