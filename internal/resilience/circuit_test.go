package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/resilience"
)

func TestBreakerTransitions(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "amqp-test",
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenFor:      50 * time.Millisecond,
	})
	boom := errors.New("boom")

	require.ErrorIs(t, breaker.Do(func() error { return boom }), boom)
	require.ErrorIs(t, breaker.Do(func() error { return boom }), boom)
	require.Equal(t, "open", breaker.State())

	calls := 0
	err := breaker.Do(func() error { calls++; return nil })
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Zero(t, calls)
	require.Equal(t, float64(1), testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("amqp-test")))

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, breaker.Do(func() error { calls++; return nil }))
	require.Equal(t, 1, calls)
	require.Equal(t, "closed", breaker.State())
	require.Equal(t, float64(0), testutil.ToFloat64(resilience.BreakerState.WithLabelValues("amqp-test")))
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
