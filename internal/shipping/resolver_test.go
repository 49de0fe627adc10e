package shipping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/shipping"
)

func TestNormalizeRegion(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  alger ":           "alger",
		"ALGER":              "alger",
		"Tizi   Ouzou":       "tizi ouzou",
		"M’Sila":             "m'sila",
		"\tEl  M`ghair\n":    "el m'ghair",
		"Bordj Bou Arreridj": "bordj bou arreridj",
	}
	for in, want := range cases {
		require.Equal(t, want, shipping.NormalizeRegion(in), "input %q", in)
	}
}

func TestPriceNormalizesRegion(t *testing.T) {
	t.Parallel()

	res := shipping.DefaultResolver()
	want := res.Price("Alger", shipping.MethodHome)
	require.Equal(t, int64(300), want)
	for _, name := range []string{"  alger ", "Alger", "ALGER"} {
		require.Equal(t, want, res.Price(name, shipping.MethodHome), name)
	}
	require.Equal(t, int64(500), res.Price("m’sila", shipping.MethodPickupPoint))
}

func TestPriceUnknownRegion(t *testing.T) {
	t.Parallel()

	res := shipping.DefaultResolver()
	require.Zero(t, res.Price("Atlantis", shipping.MethodHome))
	require.Zero(t, res.Price("Atlantis", shipping.MethodPickupPoint))
	require.Zero(t, res.Price("", shipping.MethodHome))
}

func TestPricePickupFallsBackToHome(t *testing.T) {
	t.Parallel()

	res := shipping.DefaultResolver()
	require.Equal(t, int64(850), res.Price("El Taref", shipping.MethodPickupPoint))
	require.Equal(t, int64(850), res.Price("El Taref", shipping.MethodHome))
	require.Equal(t, int64(450), res.Price("Chlef", shipping.MethodPickupPoint))
}

func TestNewResolverRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := shipping.NewResolver(map[string]shipping.RegionRate{
		"Alger":   {Home: 300},
		" ALGER ": {Home: 400},
	})
	require.ErrorIs(t, err, shipping.ErrDuplicateRegion)

	_, err = shipping.NewResolver(map[string]shipping.RegionRate{"Oran": {Home: -1}})
	require.ErrorIs(t, err, shipping.ErrInvalidRate)
}

func TestDefaultTableIsWellFormed(t *testing.T) {
	t.Parallel()

	res, err := shipping.NewResolver(shipping.DefaultTable)
	require.NoError(t, err)
	require.Len(t, res.Regions(), 55)
	require.Equal(t, "Adrar", res.Regions()[0])
}

func TestObserveReportsOutcome(t *testing.T) {
	t.Parallel()

	res := shipping.MustResolver(map[string]shipping.RegionRate{"Tipaza": {Home: 600}})
	var got []string
	res.Observe = func(m shipping.DeliveryMethod, result string) {
		got = append(got, string(m)+":"+result)
	}
	res.Price("tipaza", shipping.MethodHome)
	res.Price("tipaza", shipping.MethodPickupPoint)
	res.Price("nowhere", shipping.MethodHome)
	require.Equal(t, []string{
		"HOME:" + shipping.ResultMatched,
		"PICKUP_POINT:" + shipping.ResultPickupFallback,
		"HOME:" + shipping.ResultUnknownRegion,
	}, got)
}

func TestParseDeliveryMethod(t *testing.T) {
	t.Parallel()

	m, err := shipping.ParseDeliveryMethod("STOP_DESK")
	require.NoError(t, err)
	require.Equal(t, shipping.MethodPickupPoint, m)

	m, err = shipping.ParseDeliveryMethod(" home ")
	require.NoError(t, err)
	require.Equal(t, shipping.MethodHome, m)

	_, err = shipping.ParseDeliveryMethod("drone")
	require.ErrorIs(t, err, shipping.ErrUnknownMethod)
}
