// README: Prometheus metrics for HTTP traffic and settlement activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "freight_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	BookingTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_booking_transitions_total",
			Help: "Booking status transitions by target status",
		},
		[]string{"to"},
	)

	BidsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freight_bids_submitted_total",
			Help: "Total number of bids submitted",
		},
	)

	// result is one of accepted, conflict, rejected.
	BidAcceptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_bid_accepts_total",
			Help: "Bid accept attempts by outcome",
		},
		[]string{"result"},
	)

	PlatformChargeCentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freight_platform_charge_cents_total",
			Help: "Sum of platform charges recorded, in cents",
		},
	)

	EventPublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freight_event_publish_failures_total",
			Help: "Domain events that could not be delivered",
		},
		[]string{"type"},
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(BookingTransitionsTotal)
		prometheus.MustRegister(BidsSubmittedTotal)
		prometheus.MustRegister(BidAcceptsTotal)
		prometheus.MustRegister(PlatformChargeCentsTotal)
		prometheus.MustRegister(EventPublishFailuresTotal)
	})
}
