package client

import "sync"

// The client is process-wide: the composition root builds it once with
// SetDefault and every request site shares the same refresh coordination
// state. ResetDefault exists for test isolation.
var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// SetDefault installs the process-wide client instance
func SetDefault(c *Client) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = c
}

// Default returns the process-wide client, or nil if none was installed
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// ResetDefault clears the cached instance and its coordination state
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = nil
}
