package auth

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aidoapp/aido-go/internal/metrics"
)

// refreshKey is the singleflight key; there is only ever one logical
// refresh operation per coordinator.
const refreshKey = "refresh"

// TokenRefresher performs one refresh attempt
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

// Coordinator coalesces concurrent refresh attempts into a single call.
// The first caller to arrive while no refresh is in flight becomes the
// leader and executes the refresh; everyone arriving before it settles
// waits on the same result. Once the flight settles the coordinator is
// idle again and the next caller elects a new leader.
//
// singleflight provides the mutex-guarded in-flight state and the result
// broadcast, so the guarantee holds under real parallelism, not just
// cooperative scheduling.
type Coordinator struct {
	refresher TokenRefresher
	group     singleflight.Group
	logger    zerolog.Logger
}

// NewCoordinator creates a refresh coordinator around the given refresher
func NewCoordinator(refresher TokenRefresher, logger zerolog.Logger) *Coordinator {
	return &Coordinator{refresher: refresher, logger: logger}
}

// Refresh runs (or joins) the coordinated refresh and returns its shared
// error. Waiters stop waiting when their own context is canceled; the
// in-flight refresh itself is not aborted, since its result is shared.
func (c *Coordinator) Refresh(ctx context.Context) error {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return nil, c.refresher.Refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CoalescedWaiters.Inc()
			c.logger.Debug().Msg("Joined in-flight token refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
