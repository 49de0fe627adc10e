package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/obs"
)

func TestDomainMetricsRecordOutcomes(t *testing.T) {
	obs.MustRegisterDomainMetrics("fafa", prometheus.NewRegistry())

	before := testutil.ToFloat64(obs.ShippingResolutionsTotal.WithLabelValues("HOME", "unknown_region"))
	obs.ObserveShippingResolution("HOME", "unknown_region")
	require.Equal(t, before+1, testutil.ToFloat64(obs.ShippingResolutionsTotal.WithLabelValues("HOME", "unknown_region")))

	before = testutil.ToFloat64(obs.CartOperationsTotal.WithLabelValues("add", "out_of_stock"))
	obs.ObserveCartOperation("add", "out_of_stock")
	require.Equal(t, before+1, testutil.ToFloat64(obs.CartOperationsTotal.WithLabelValues("add", "out_of_stock")))
}
