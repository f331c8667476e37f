// Package metrics holds the Prometheus collectors of the reservation service.
// Labels are bounded enums only, never ids.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsTotal counts committed lifecycle transitions.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_reservation_transitions_total",
		Help: "Committed reservation lifecycle transitions, by transition.",
	}, []string{"transition"})

	// ReservationsCreatedTotal counts new bookings by payment method.
	ReservationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_reservations_created_total",
		Help: "Reservations created, by payment method.",
	}, []string{"payment_method"})

	SweeperUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_sweeper_updates_total",
		Help: "Reservations advanced by the periodic sweeper, by pass.",
	}, []string{"pass"})

	SweeperFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hotel_sweeper_failures_total",
		Help: "Sweeper ticks that ended with an error.",
	})

	// RateLimitRejectionsTotal counts requests refused by a limiter.
	RateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hotel_ratelimit_rejections_total",
		Help: "Requests rejected by rate limiting, by action.",
	}, []string{"action"})

	CashReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hotel_cash_payments_received_total",
		Help: "Cash payments confirmed at the front desk.",
	})
)

func RecordTransition(transition string) {
	TransitionsTotal.WithLabelValues(transition).Inc()
}

func RecordRateLimited(action string) {
	RateLimitRejectionsTotal.WithLabelValues(action).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
