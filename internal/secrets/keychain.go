package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
)

const keychainService = "aido-credentials"

// KeychainStore persists secrets as a single generic password item in the
// macOS keychain, holding a JSON object of all keys. The `security` CLI is
// used the same way the login flow of the desktop tooling does.
type KeychainStore struct {
	mu sync.Mutex
	// Service overrides the keychain service name, for tests.
	Service string
}

// NewKeychainStore creates a keychain-backed secret store
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{Service: keychainService}
}

func (k *KeychainStore) Get(_ context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.read()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (k *KeychainStore) Set(_ context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.read()
	if err != nil {
		return err
	}
	values[key] = value
	return k.write(values)
}

func (k *KeychainStore) Remove(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return k.write(values)
}

// read fetches and parses the keychain item. A missing item is treated as
// an empty store; `security` does not let us distinguish "not found" from
// other lookup failures without parsing stderr, and a fresh install has no
// item at all.
func (k *KeychainStore) read() (map[string]string, error) {
	cmd := exec.Command("security", "find-generic-password", "-s", k.Service, "-w")
	output, err := cmd.Output()
	if err != nil {
		return map[string]string{}, nil
	}

	values := map[string]string{}
	if err := json.Unmarshal(output, &values); err != nil {
		return nil, fmt.Errorf("failed to parse keychain credentials: %w", err)
	}
	return values, nil
}

func (k *KeychainStore) write(values map[string]string) error {
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal keychain credentials: %w", err)
	}

	// -U upserts, but replacing the item wholesale avoids stale attributes
	deleteCmd := exec.Command("security", "delete-generic-password", "-s", k.Service)
	deleteCmd.Run()

	addCmd := exec.Command("security", "add-generic-password", "-s", k.Service, "-a", "aido", "-w", string(b), "-U")
	if err := addCmd.Run(); err != nil {
		return fmt.Errorf("failed to update keychain: %w", err)
	}
	return nil
}
