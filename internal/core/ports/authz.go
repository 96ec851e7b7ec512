package ports

import (
	"context"
	"time"

	"CasaBid/internal/core/domain"
)

// Authorizer is the single capability check used by every entry point.
// It returns domain.ErrUnauthenticated for a nil principal and
// domain.ErrForbidden when the role lacks the action.
type Authorizer interface {
	Authorize(principal *domain.Principal, action domain.Action) error
}

// RateLimiter counts hits per key in a fixed window.
type RateLimiter interface {
	// Allow reports whether another hit is allowed, and if not, how long the
	// caller should wait.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}
