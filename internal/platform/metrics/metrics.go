package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leavedesk_http_requests_total",
			Help: "HTTP requests served, by method, normalized path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leavedesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	holidayCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leavedesk_holiday_cache_hits_total",
			Help: "Holiday year lookups served from the in-process cache.",
		},
	)

	holidayCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leavedesk_holiday_cache_misses_total",
			Help: "Holiday year lookups that fell through to the database.",
		},
	)

	leaveRequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leavedesk_leave_requests_created_total",
			Help: "Leave requests accepted, by leave type.",
		},
		[]string{"leave_type"},
	)

	overtimeRequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leavedesk_overtime_requests_created_total",
			Help: "Overtime claims accepted, by claim type.",
		},
		[]string{"ot_type"},
	)

	carryForwardMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leavedesk_carry_forward_merged_total",
			Help: "Carry-forward requests merged into next-year wallets.",
		},
	)
)

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordHolidayCacheHit()  { holidayCacheHits.Inc() }
func RecordHolidayCacheMiss() { holidayCacheMisses.Inc() }

func RecordLeaveRequestCreated(leaveType string) {
	leaveRequestsCreated.WithLabelValues(leaveType).Inc()
}

func RecordOvertimeRequestCreated(otType string) {
	overtimeRequestsCreated.WithLabelValues(otType).Inc()
}

func RecordCarryForwardMerged(count int) {
	carryForwardMerged.Add(float64(count))
}
