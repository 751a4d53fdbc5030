//go:build js && wasm

package secrets

import (
	"context"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// CloudflareKVStore persists secrets in a Cloudflare Workers KV namespace.
// The binding name is configured in wrangler.toml.
type CloudflareKVStore struct {
	kvStore *kv.Namespace
	prefix  string
}

// NewCloudflareKVStore creates a KV-backed secret store using the
// "aido_secrets_kv" namespace binding.
func NewCloudflareKVStore() (*CloudflareKVStore, error) {
	kvStore, err := kv.NewNamespace("aido_secrets_kv")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKVStore{kvStore: kvStore, prefix: "secrets:"}, nil
}

func (c *CloudflareKVStore) Get(_ context.Context, key string) (string, error) {
	v, err := c.kvStore.GetString(c.prefix+key, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get secret from KV: %w", err)
	}
	return v, nil
}

func (c *CloudflareKVStore) Set(_ context.Context, key, value string) error {
	if err := c.kvStore.PutString(c.prefix+key, value, nil); err != nil {
		return fmt.Errorf("failed to store secret in KV: %w", err)
	}
	return nil
}

func (c *CloudflareKVStore) Remove(_ context.Context, key string) error {
	if err := c.kvStore.Delete(c.prefix + key); err != nil {
		return fmt.Errorf("failed to remove secret from KV: %w", err)
	}
	return nil
}
