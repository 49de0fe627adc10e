package main

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/obs"
	"github.com/noah-isme/fafa-store/internal/shipping"
)

func TestNewRatesReportsResolutions(t *testing.T) {
	obs.MustRegisterDomainMetrics("fafa", prometheus.NewRegistry())
	rates, err := newRates()
	require.NoError(t, err)
	require.NotSame(t, shipping.DefaultResolver(), rates)

	counter := func(method, result string) float64 {
		return testutil.ToFloat64(obs.ShippingResolutionsTotal.WithLabelValues(method, result))
	}
	unknown := counter("HOME", shipping.ResultUnknownRegion)
	fallback := counter("PICKUP_POINT", shipping.ResultPickupFallback)
	matched := counter("HOME", shipping.ResultMatched)

	require.Zero(t, rates.Price("Atlantis", shipping.MethodHome))
	require.Equal(t, int64(1050), rates.Price("Bayadh", shipping.MethodPickupPoint))
	require.Equal(t, int64(800), rates.Price(" oran ", shipping.MethodHome))

	require.Equal(t, unknown+1, counter("HOME", shipping.ResultUnknownRegion))
	require.Equal(t, fallback+1, counter("PICKUP_POINT", shipping.ResultPickupFallback))
	require.Equal(t, matched+1, counter("HOME", shipping.ResultMatched))
}
