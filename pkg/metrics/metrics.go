package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Producer metrics
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_events_published_total",
		Help: "Total number of lifecycle events handed to the broker",
	}, []string{"kind"})
	EventPublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_event_publish_errors_total",
		Help: "Total number of lifecycle events that could not be published, by error type",
	}, []string{"kind", "error_type"})
	EventPublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notifier_event_publish_duration_seconds",
		Help:    "Latency of handing a lifecycle event to the broker",
		Buckets: prometheus.DefBuckets,
	})

	// Consumer metrics
	EventsConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_events_consumed_total",
		Help: "Total number of lifecycle events processed by the consumer, by outcome",
	}, []string{"kind", "outcome"})
	EventsDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_events_dead_lettered_total",
		Help: "Total number of lifecycle events routed to the dead-letter topic",
	})
	ConsumerCommitErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_consumer_commit_errors_total",
		Help: "Total number of failed offset commits",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"transport"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"transport"})
	MailRenderFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_mail_render_failure_total",
		Help: "Total number of template rendering failures",
	}, []string{"template"})

	// Direct endpoint metrics
	DirectNotifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_direct_notifications_total",
		Help: "Total number of direct notification requests, by operation and HTTP status",
	}, []string{"operation", "status"})

	// Gateway metrics
	GatewayFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_gateway_fallbacks_total",
		Help: "Total number of requests answered with the fallback payload",
	}, []string{"service"})
	GatewayBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notifier_gateway_breaker_state",
		Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open)",
	}, []string{"service"})

	// HTTP metrics
	RequestsRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_requests_rate_limited_total",
		Help: "Total number of requests rejected with 429, by route",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(EventPublishErrors)
	prometheus.MustRegister(EventPublishLatency)
	prometheus.MustRegister(EventsConsumed)
	prometheus.MustRegister(EventsDeadLettered)
	prometheus.MustRegister(ConsumerCommitErrors)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailRenderFailure)
	prometheus.MustRegister(DirectNotifications)
	prometheus.MustRegister(GatewayFallbacks)
	prometheus.MustRegister(GatewayBreakerState)
	prometheus.MustRegister(RequestsRateLimited)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
