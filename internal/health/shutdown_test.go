package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/health"
)

type noopChecker struct{}

func (noopChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (noopChecker) PingRedis(context.Context, time.Duration) error { return nil }

type fakeServer struct {
	readyDuring int
	deadline    bool
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	rec := httptest.NewRecorder()
	health.Handler{Checker: noopChecker{}}.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	f.readyDuring = rec.Code
	_, f.deadline = ctx.Deadline()
	return nil
}

func TestDrainFailsReadinessBeforeShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	health.SetReady(true)

	srv := &fakeServer{}
	require.NoError(t, health.Drain(context.Background(), srv, time.Millisecond, time.Second))
	require.Equal(t, http.StatusServiceUnavailable, srv.readyDuring)
	require.True(t, srv.deadline)
}

func TestDrainSurvivesCancelledParent(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := &fakeServer{}
	require.NoError(t, health.Drain(ctx, srv, time.Hour, time.Second))
	require.True(t, srv.deadline)
}
