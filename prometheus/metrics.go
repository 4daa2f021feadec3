package prometheus

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/pkg/config"
)

var (
	// Gateway metrics
	GatewayCheckCounter *prometheus.CounterVec

	// Partnership metrics
	PartnershipTransitionCounter *prometheus.CounterVec
	ActivePartnershipsGauge      prometheus.Gauge

	// Token metrics
	TokenRequestCounter        *prometheus.CounterVec
	InvalidTokenRequestCounter *prometheus.CounterVec

	// Messaging and transaction metrics
	MessagesSentCounter        *prometheus.CounterVec
	TransactionsCounter        *prometheus.CounterVec
	TransactionAmountHistogram prometheus.Histogram

	// Partner call metrics
	PartnerCallHistogram *prometheus.HistogramVec

	// Realtime metrics
	RealtimeEventCounter *prometheus.CounterVec

	// Database operation metrics
	DBOperationHistogram *prometheus.HistogramVec

	// Request metrics
	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	APIErrorCounter          *prometheus.CounterVec

	// Namespace prefix for metrics
	namespace string
)

// InitMetrics initializes all Prometheus metrics
func InitMetrics(cfg *config.Config) {
	namespace = cfg.Metrics.Prefix

	GatewayCheckCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_checks_total",
			Help:      "Total number of federation gateway checks",
		},
		[]string{"capability", "allowed"},
	)

	PartnershipTransitionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partnership_transitions_total",
			Help:      "Total number of partnership state transitions",
		},
		[]string{"to_status"},
	)

	ActivePartnershipsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_partnerships",
		Help:      "Number of currently active partnerships",
	})

	TokenRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_request_total",
			Help:      "Total number of partner token requests",
		},
		[]string{"grant_type"},
	)

	InvalidTokenRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_token_request_total",
			Help:      "Total number of invalid partner token requests",
		},
		[]string{"error_type"},
	)

	MessagesSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of federated messages sent",
		},
		[]string{"route"},
	)

	TransactionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Total number of federated transactions",
		},
		[]string{"kind"},
	)

	TransactionAmountHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transaction_amount_hours",
		Help:      "Distribution of transaction amounts in hours",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})

	PartnerCallHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partner_call_duration_seconds",
			Help:      "Duration of outbound partner API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "success"},
	)

	RealtimeEventCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Total number of realtime events dispatched",
		},
		[]string{"type"},
	)

	DBOperationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Duration of database operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RequestDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	APIRequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path"},
	)

	APIErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_errors_total",
			Help:      "Total number of API errors",
		},
		[]string{"method", "path", "status"},
	)
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			APIRequestCounter.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Inc()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			RequestDurationHistogram.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": status,
			}).Observe(duration)

			if c.Response().Status >= 400 {
				APIErrorCounter.With(prometheus.Labels{
					"method": c.Request().Method,
					"path":   c.Path(),
					"status": status,
				}).Inc()
			}

			return err
		}
	}
}

// HandlerFunc returns a HTTP handler for the metrics endpoint
func HandlerFunc() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// TrackDBOperation returns a function that tracks database operation duration
func TrackDBOperation(operation string) func(time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationHistogram.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// RecordGatewayCheck increments the gateway check counter
func RecordGatewayCheck(capability string, allowed bool) {
	if GatewayCheckCounter == nil {
		return
	}
	GatewayCheckCounter.With(prometheus.Labels{
		"capability": capability,
		"allowed":    strconv.FormatBool(allowed),
	}).Inc()
}

// RecordPartnershipTransition increments the transition counter
func RecordPartnershipTransition(toStatus string) {
	if PartnershipTransitionCounter == nil {
		return
	}
	PartnershipTransitionCounter.With(prometheus.Labels{"to_status": toStatus}).Inc()
}

// RecordPartnerCall observes an outbound partner call
func RecordPartnerCall(operation string, success bool, elapsed time.Duration) {
	if PartnerCallHistogram == nil {
		return
	}
	PartnerCallHistogram.With(prometheus.Labels{
		"operation": operation,
		"success":   strconv.FormatBool(success),
	}).Observe(elapsed.Seconds())
}

// RecordMessageSent increments the message counter for a delivery route
func RecordMessageSent(route string) {
	if MessagesSentCounter == nil {
		return
	}
	MessagesSentCounter.With(prometheus.Labels{"route": route}).Inc()
}

// RecordTransaction increments the transaction counter and observes the
// amount
func RecordTransaction(kind string, amount float64) {
	if TransactionsCounter == nil {
		return
	}
	TransactionsCounter.With(prometheus.Labels{"kind": kind}).Inc()
	TransactionAmountHistogram.Observe(amount)
}

// RecordRealtimeEvent increments the realtime event counter
func RecordRealtimeEvent(eventType string) {
	if RealtimeEventCounter == nil {
		return
	}
	RealtimeEventCounter.With(prometheus.Labels{"type": eventType}).Inc()
}
