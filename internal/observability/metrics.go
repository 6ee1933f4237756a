package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "rides_booked_total", Help: "Rides created, by vehicle class"},
		[]string{"class"},
	)
	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "driver_assignments_total", Help: "Assignment outcomes per booking"},
		[]string{"outcome"},
	)
	AssignmentRaces = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_booking", Name: "driver_assignment_races_total", Help: "Candidates lost to a concurrent booking"})
	BookingLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ride_booking", Name: "booking_latency_seconds", Help: "Booking workflow latency seconds"})
	RidesReleased   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "rides_released_total", Help: "Rides completed or cancelled"},
		[]string{"status"},
	)
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "logins_total", Help: "Login attempts by outcome"},
		[]string{"outcome"},
	)
	SettingsUpdates  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_booking", Name: "security_settings_updates_total", Help: "Successful security settings upserts"})
	DriversConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_booking", Name: "drivers_connected", Help: "Drivers with an open websocket"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
