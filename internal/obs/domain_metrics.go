package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartOperationsTotal counts cart mutations by operation and outcome.
	CartOperationsTotal *prometheus.CounterVec
	// ShippingResolutionsTotal counts rate table lookups by delivery method and outcome.
	ShippingResolutionsTotal *prometheus.CounterVec
	// CheckoutOrdersTotal counts order placement attempts.
	CheckoutOrdersTotal *prometheus.CounterVec
	// EventsPublishedTotal tracks broker publish outcomes per topic.
	EventsPublishedTotal *prometheus.CounterVec
	// CartLockWait records time spent acquiring the per-cart lock in milliseconds.
	CartLockWait prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"})
		ShippingResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_resolutions_total",
			Help:      "Count of shipping price resolutions by method and result.",
		}, []string{"method", "result"})
		CheckoutOrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_orders_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Count of domain events pushed to the broker.",
		}, []string{"topic", "result"})
		CartLockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_lock_wait_ms",
			Help:      "Time spent waiting for the cart lock in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})

		registerOrReuse(reg, &CartOperationsTotal)
		registerOrReuse(reg, &ShippingResolutionsTotal)
		registerOrReuse(reg, &CheckoutOrdersTotal)
		registerOrReuse(reg, &EventsPublishedTotal)
		registerOrReuse(reg, &CartLockWait)
	})
}

// ObserveShippingResolution records a rate table lookup outcome.
func ObserveShippingResolution(method, result string) {
	if ShippingResolutionsTotal != nil {
		ShippingResolutionsTotal.WithLabelValues(method, result).Inc()
	}
}

// ObserveCartOperation records a cart mutation outcome.
func ObserveCartOperation(op, result string) {
	if CartOperationsTotal != nil {
		CartOperationsTotal.WithLabelValues(op, result).Inc()
	}
}
