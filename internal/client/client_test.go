package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidoapp/aido-go/internal/secrets"
)

// fakeBackend is an Aido API double: protected routes accept exactly one
// bearer token, /auth/refresh rotates it.
type fakeBackend struct {
	mu           sync.Mutex
	validToken   string
	nextPair     [2]string // access, refresh issued by the next refresh
	refreshCalls int64
	unauthorized int64
	refreshGate  func() // optional hold before answering a refresh
	authSeen     map[string]string
	refreshOK    bool

	srv *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		validToken: "valid-at",
		nextPair:   [2]string{"new-at", "new-rt"},
		authSeen:   map[string]string{},
		refreshOK:  true,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("/", b.handleProtected)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&b.refreshCalls, 1)
	b.mu.Lock()
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		gate()
	}

	if !b.refreshOK {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"error":{"code":"AUTH_REFRESH_INVALID","message":"refresh token revoked"}}`)
		return
	}

	b.mu.Lock()
	access, refresh := b.nextPair[0], b.nextPair[1]
	b.validToken = access
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"data":{"accessToken":%q,"refreshToken":%q},"timestamp":%d}`, access, refresh, time.Now().UnixMilli())
}

func (b *fakeBackend) handleProtected(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	b.mu.Lock()
	want := "Bearer " + b.validToken
	b.mu.Unlock()

	if authz != want {
		atomic.AddInt64(&b.unauthorized, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintf(w, `{"success":false,"error":{"code":"AUTH_EXPIRED","message":"access token expired"},"path":%q}`, r.URL.Path)
		return
	}

	b.mu.Lock()
	b.authSeen[r.URL.Path] = authz
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"data":{"path":%q},"timestamp":%d}`, r.URL.Path, time.Now().UnixMilli())
}

// countingStore wraps a Store and counts operations, to verify the
// pass-through path performs no extra store traffic.
type countingStore struct {
	secrets.Store
	gets, sets, removes int64
}

func (c *countingStore) Get(ctx context.Context, key string) (string, error) {
	atomic.AddInt64(&c.gets, 1)
	return c.Store.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	atomic.AddInt64(&c.sets, 1)
	return c.Store.Set(ctx, key, value)
}

func (c *countingStore) Remove(ctx context.Context, key string) error {
	atomic.AddInt64(&c.removes, 1)
	return c.Store.Remove(ctx, key)
}

func seedTokens(t *testing.T, store secrets.Store, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	if access != "" {
		require.NoError(t, store.Set(ctx, secrets.KeyAccessToken, access))
	}
	if refresh != "" {
		require.NoError(t, store.Set(ctx, secrets.KeyRefreshToken, refresh))
	}
}

func TestPassThroughNonUnauthorized(t *testing.T) {
	backend := newFakeBackend(t)
	store := &countingStore{Store: secrets.NewMemoryStore()}
	seedTokens(t, store, "valid-at", "valid-rt")
	c := New(backend.srv.URL, store)

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/todos"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, atomic.LoadInt64(&backend.refreshCalls))
	// only the pre-request token read touches the store
	assert.EqualValues(t, 1, atomic.LoadInt64(&store.gets))
	assert.EqualValues(t, 0, atomic.LoadInt64(&store.sets))
	assert.EqualValues(t, 0, atomic.LoadInt64(&store.removes))
}

func TestUnauthenticatedRequestHasNoBearer(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"data":null,"timestamp":0}`)
	}))
	defer srv.Close()

	c := New(srv.URL, secrets.NewMemoryStore())
	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/todos"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "", gotAuth.Load().(string))
}

func TestConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	backend := newFakeBackend(t)
	store := secrets.NewMemoryStore()
	seedTokens(t, store, "expired-at", "old-rt")
	c := New(backend.srv.URL, store)

	// hold the refresh until every request has received its 401, so all
	// three are guaranteed to share the same refresh window
	backend.mu.Lock()
	backend.refreshGate = func() {
		deadline := time.Now().Add(2 * time.Second)
		for atomic.LoadInt64(&backend.unauthorized) < 3 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
	}
	backend.mu.Unlock()

	paths := []string{"/todos", "/notifications", "/friends"}
	var wg sync.WaitGroup
	statuses := make([]int, len(paths))
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: path})
			if err != nil {
				t.Errorf("request %s: %v", path, err)
				return
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			statuses[i] = resp.StatusCode
		}(i, path)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&backend.refreshCalls), "N concurrent 401s must trigger exactly one refresh call")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	for i, path := range paths {
		assert.Equal(t, http.StatusOK, statuses[i], "request %s succeeds after retry", path)
		assert.Equal(t, "Bearer new-at", backend.authSeen[path], "request %s retried with the refreshed token", path)
	}

	ctx := context.Background()
	access, err := store.Get(ctx, secrets.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new-at", access)
	refresh, err := store.Get(ctx, secrets.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "new-rt", refresh)
}

func TestMissingRefreshTokenReturnsOriginal401(t *testing.T) {
	backend := newFakeBackend(t)
	store := secrets.NewMemoryStore()
	c := New(backend.srv.URL, store)

	resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/todos"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "AUTH_EXPIRED", "original 401 body is preserved")

	// refresh fails fast without touching the endpoint
	assert.EqualValues(t, 0, atomic.LoadInt64(&backend.refreshCalls))

	ctx := context.Background()
	access, err := store.Get(ctx, secrets.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestRefreshFailurePropagatesOriginal401ToAllWaiters(t *testing.T) {
	backend := newFakeBackend(t)
	backend.refreshOK = false
	store := secrets.NewMemoryStore()
	seedTokens(t, store, "expired-at", "revoked-rt")
	c := New(backend.srv.URL, store)

	backend.mu.Lock()
	backend.refreshGate = func() {
		deadline := time.Now().Add(2 * time.Second)
		for atomic.LoadInt64(&backend.unauthorized) < 3 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
	}
	backend.mu.Unlock()

	paths := []string{"/todos", "/notifications", "/friends"}
	var wg sync.WaitGroup
	results := make([]*http.Response, len(paths))
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			resp, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: path})
			if err != nil {
				t.Errorf("request %s: %v", path, err)
				return
			}
			results[i] = resp
		}(i, path)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&backend.refreshCalls))

	for i, resp := range results {
		require.NotNil(t, resp, "request %d", i)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "every waiter gets its original 401, not the refresh error")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Contains(t, string(body), paths[i], "each caller gets its own original response back")
	}

	// unrecoverable refresh logs the user out
	ctx := context.Background()
	access, err := store.Get(ctx, secrets.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, access)
	refresh, err := store.Get(ctx, secrets.KeyRefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refresh)
}

func TestNewRefreshCycleAfterPreviousSettled(t *testing.T) {
	backend := newFakeBackend(t)
	store := secrets.NewMemoryStore()
	seedTokens(t, store, "expired-at", "old-rt")
	c := New(backend.srv.URL, store)

	ctx := context.Background()
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/todos"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt64(&backend.refreshCalls))

	// expire the rotated token server-side; the next 401 must elect a new
	// leader rather than reuse the settled flight
	backend.mu.Lock()
	backend.validToken = "rotated-again-at"
	backend.nextPair = [2]string{"rotated-again-at", "rotated-again-rt"}
	backend.mu.Unlock()

	resp, err = c.Do(ctx, &Request{Method: http.MethodGet, Path: "/notifications"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt64(&backend.refreshCalls))
}

// failAfterDoer lets the first n requests through, then fails.
type failAfterDoer struct {
	inner HTTPDoer
	n     int64
	count int64
}

func (f *failAfterDoer) Do(req *http.Request) (*http.Response, error) {
	// the refresh call goes through the same transport; only fail
	// protected-resource attempts
	if req.URL.Path != "/auth/refresh" && atomic.AddInt64(&f.count, 1) > f.n {
		return nil, errors.New("connection reset")
	}
	return f.inner.Do(req)
}

func TestRetryFailureIsAnOrdinaryError(t *testing.T) {
	backend := newFakeBackend(t)
	store := secrets.NewMemoryStore()
	seedTokens(t, store, "expired-at", "old-rt")

	doer := &failAfterDoer{inner: &http.Client{}, n: 1}
	c := New(backend.srv.URL, store, WithHTTPClient(doer))

	_, err := c.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/todos"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	// refresh itself succeeded; no second refresh is attempted for the
	// failed retry
	assert.EqualValues(t, 1, atomic.LoadInt64(&backend.refreshCalls))
}

func TestDefaultClientLifecycle(t *testing.T) {
	ResetDefault()
	assert.Nil(t, Default())

	c := New("http://localhost", secrets.NewMemoryStore())
	SetDefault(c)
	assert.Same(t, c, Default())

	ResetDefault()
	assert.Nil(t, Default())
}
