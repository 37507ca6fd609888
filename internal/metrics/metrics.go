package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the application.
// It covers the dashboard HTTP API, the aggregation and store layers,
// and the Telegram bot.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec   // Counter for served API requests
	HTTPDuration        *prometheus.HistogramVec // Histogram for API request durations
	AggregationDuration *prometheus.HistogramVec // Histogram for analytics computations
	DBQueryDuration     *prometheus.HistogramVec // Histogram for store query durations
	ReportGeneration    *prometheus.HistogramVec // Histogram for XLSX export durations
	CommandReceived     *prometheus.CounterVec   // Counter for received bot commands
	SentMessages        *prometheus.CounterVec   // Counter for sent bot messages
	CacheOps            *prometheus.CounterVec   // Counter for linked-user cache operations
}

// NewMetrics creates a new Metrics instance with the provided Prometheus Registerer.
//
// Parameters:
//   - reg: A Prometheus Registerer used to register the metrics.
//
// Returns:
//   - A pointer to the newly created Metrics instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "taskpulse_http_requests_total",
			Help: "Total number of dashboard API requests",
		}, []string{"route", "code"}), // route: analytics, counts, report
		HTTPDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskpulse_http_request_duration_seconds",
			Help:    "Duration of dashboard API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AggregationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskpulse_aggregation_duration_seconds",
			Help:    "Duration of analytics computations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "scope"}), // operation: analytics, counts; scope: admin, user
		DBQueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskpulse_db_query_duration_seconds",
			Help:    "Duration of task and user store queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query_type"}), // query_type: count_tasks, group_tasks, get_linked_user, link_telegram, delete_link
		ReportGeneration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "taskpulse_report_generation_duration_seconds",
			Help: "Duration of report excel generation.",
		}, []string{"source"}), // source: api, bot
		CommandReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Total number of used commands",
		}, []string{"command"}), // command: start, link, logout, stats, report
		SentMessages: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_messages_sent_total",
			Help: "Output bot activity",
		}, []string{"type"}), // type: text, document, error
		CacheOps: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_cache_operations_total",
			Help: "Linked-user cache operations",
		}, []string{"operation", "result"}), // operation: get, set, delete
	}
}
