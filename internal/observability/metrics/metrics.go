package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	PropertyTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "property_transitions_total",
			Help: "Listing lifecycle transitions by target status.",
		},
		[]string{"service", "status"},
	)

	ChatsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chats_opened_total",
			Help: "Get-or-create chat calls by outcome.",
		},
		[]string{"service", "outcome"},
	)

	MessagesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_stored_total",
			Help: "Total number of stored chat messages.",
		},
		[]string{"service"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"service", "scope"},
	)
)

var serviceName = "rentals"

func MustRegister(name string) {
	serviceName = name

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		PropertyTransitionsTotal,
		ChatsOpenedTotal,
		MessagesStoredTotal,
		RateLimitedTotal,
	)
}

func ObserveHTTPRequest(method, path, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(serviceName, method, path, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(serviceName, method, path).Observe(seconds)
}

func ObserveTransition(status string) {
	PropertyTransitionsTotal.WithLabelValues(serviceName, status).Inc()
}

// ObserveChatOpened records whether a get-or-create call found or made the chat.
func ObserveChatOpened(created bool) {
	outcome := "existing"
	if created {
		outcome = "created"
	}
	ChatsOpenedTotal.WithLabelValues(serviceName, outcome).Inc()
}

func ObserveMessageStored() {
	MessagesStoredTotal.WithLabelValues(serviceName).Inc()
}

func ObserveRateLimited(scope string) {
	RateLimitedTotal.WithLabelValues(serviceName, scope).Inc()
}
