package health

import (
	"context"
	"time"
)

// Shutdowner is satisfied by *http.Server.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Drain flips readiness off, waits delay so load balancers stop routing, and
// then shuts srv down, giving in-flight requests until timeout.
func Drain(ctx context.Context, srv Shutdowner, delay, timeout time.Duration) error {
	SetReady(false)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
