package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CheckoutMetrics struct {
	Checkouts  *prometheus.CounterVec
	Receipts   *prometheus.CounterVec
	DurationMS prometheus.Histogram
}

func NewCheckoutMetrics() *CheckoutMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sorapc",
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sorapc",
		Subsystem: "checkout",
		Name:      "receipt_deliveries_total",
		Help:      "Receipt delivery attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sorapc",
		Subsystem: "checkout",
		Name:      "duration_ms",
		Help:      "Checkout workflow duration in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	prometheus.MustRegister(checkouts, receipts, duration)
	return &CheckoutMetrics{Checkouts: checkouts, Receipts: receipts, DurationMS: duration}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
