package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aidoapp/aido-go/internal/metrics"
	"github.com/aidoapp/aido-go/internal/secrets"
)

// DefaultRefreshTimeout bounds a single refresh call against the backend.
const DefaultRefreshTimeout = 10 * time.Second

// ErrRefreshUnavailable means no refresh token was present when a refresh
// was attempted. The user has to log in again.
var ErrRefreshUnavailable = errors.New("no refresh token available")

// ErrRefreshFailed means the refresh endpoint call errored, returned a
// non-2xx status, or returned a malformed body. The user has to log in
// again.
var ErrRefreshFailed = errors.New("token refresh failed")

// refreshEnvelope is the Aido response envelope for POST /auth/refresh.
type refreshEnvelope struct {
	Success   bool      `json:"success"`
	Data      TokenPair `json:"data"`
	Timestamp int64     `json:"timestamp"`
}

// HTTPDoer is the transport used for the refresh call
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Refresher exchanges the stored refresh token for a new token pair via
// POST /auth/refresh. A failed exchange is unrecoverable at this layer:
// both tokens are cleared from the store so callers fall back to login.
type Refresher struct {
	baseURL    string
	httpClient HTTPDoer
	store      secrets.Store
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewRefresher creates a Refresher against the given base URL
func NewRefresher(baseURL string, httpClient HTTPDoer, store secrets.Store, logger zerolog.Logger) *Refresher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Refresher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		store:      store,
		timeout:    DefaultRefreshTimeout,
		logger:     logger,
	}
}

// Refresh performs exactly one refresh attempt. On success the new token
// pair has been persisted to the secret store. On any failure both tokens
// have been cleared and ErrRefreshUnavailable or ErrRefreshFailed is
// returned.
//
// The call is detached from the caller's cancellation: under coalescing the
// result is shared by every waiter, so one caller giving up must not abort
// the refresh for the rest.
func (r *Refresher) Refresh(ctx context.Context) error {
	metrics.RefreshAttempts.Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	refreshToken, err := r.store.Get(ctx, secrets.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	if refreshToken == "" {
		r.logger.Warn().Msg("Refresh requested but no refresh token is stored, logging out")
		metrics.RefreshFailures.WithLabelValues("unavailable").Inc()
		r.clearTokens(ctx)
		return ErrRefreshUnavailable
	}

	pair, err := r.exchange(ctx, refreshToken)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Token refresh failed, logging out")
		metrics.RefreshFailures.WithLabelValues("exchange").Inc()
		r.clearTokens(ctx)
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	if err := SaveTokenPair(ctx, r.store, pair); err != nil {
		metrics.RefreshFailures.WithLabelValues("store").Inc()
		return fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	metrics.RefreshSuccesses.Inc()
	r.logger.Info().Msg("Token refresh succeeded")
	return nil
}

// exchange performs the actual POST /auth/refresh call.
func (r *Refresher) exchange(ctx context.Context, refreshToken string) (TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh", nil)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TokenPair{}, fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var envelope refreshEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return TokenPair{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if !envelope.Success || envelope.Data.AccessToken == "" || envelope.Data.RefreshToken == "" {
		return TokenPair{}, fmt.Errorf("refresh response envelope is malformed")
	}

	return envelope.Data, nil
}

func (r *Refresher) clearTokens(ctx context.Context) {
	if err := ClearTokenPair(ctx, r.store); err != nil {
		r.logger.Error().Err(err).Msg("Failed to clear tokens after unrecoverable refresh")
	}
}
