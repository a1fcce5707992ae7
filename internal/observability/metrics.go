package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_ops_requests_total",
			Help: "Total number of HTTP requests served by the ops endpoint.",
		},
		[]string{"method", "route", "status"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_api_request_duration_seconds",
			Help:    "Backend REST request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_api_requests_total",
			Help: "Total number of backend REST requests.",
		},
		[]string{"operation", "outcome"},
	)
	channelConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_channel_connected",
			Help: "Whether the realtime channel is currently connected.",
		},
	)
	channelReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_channel_reconnects_total",
			Help: "Total number of realtime channel reconnect attempts.",
		},
	)
	channelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_channel_events_total",
			Help: "Total number of realtime channel events by direction.",
		},
		[]string{"direction", "event"},
	)
	droppedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_dropped_events_total",
			Help: "Total number of inbound events dropped before dispatch.",
		},
		[]string{"event", "reason"},
	)
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_actions_total",
			Help: "Total number of user actions by outcome.",
		},
		[]string{"action", "outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		apiRequestDuration,
		apiRequestsTotal,
		channelConnected,
		channelReconnectsTotal,
		channelEventsTotal,
		droppedEventsTotal,
		actionsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts for the ops server.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
	}
}

// ObserveAPIRequest records one backend REST call.
func ObserveAPIRequest(operation, outcome string, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(operation, outcome).Inc()
	apiRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func SetChannelConnected(connected bool) {
	if connected {
		channelConnected.Set(1)
		return
	}
	channelConnected.Set(0)
}

func IncChannelReconnect() {
	channelReconnectsTotal.Inc()
}

func IncChannelEvent(direction, event string) {
	channelEventsTotal.WithLabelValues(direction, event).Inc()
}

func IncDroppedEvent(event, reason string) {
	droppedEventsTotal.WithLabelValues(event, reason).Inc()
}

func IncAction(action, outcome string) {
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
