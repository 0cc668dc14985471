package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var connectionStates = []string{"idle", "connecting", "open", "closing", "reconnecting"}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_http_requests_total",
			Help: "Total number of gateway HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_http_request_duration_seconds",
			Help:    "Gateway HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_client_connection_state",
			Help: "Messaging transport state; the active state is 1.",
		},
		[]string{"state"},
	)
	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_reconnects_scheduled_total",
			Help: "Total number of reconnection attempts scheduled after abnormal closure.",
		},
	)
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_frames_total",
			Help: "Total number of websocket frames by direction and type.",
		},
		[]string{"direction", "type"},
	)
	framesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_frames_dropped_total",
			Help: "Total number of inbound frames dropped.",
		},
		[]string{"reason"},
	)
	sendRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_send_rejected_total",
			Help: "Total number of outbound intents rejected because the transport was not open.",
		},
	)
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_backend_requests_total",
			Help: "Total number of backend REST calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP notification publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		connectionState,
		reconnectsTotal,
		framesTotal,
		framesDroppedTotal,
		sendRejectedTotal,
		backendRequestsTotal,
		amqpPublishErrorsTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// SetConnectionState marks state as the only active transport state.
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		connectionState.WithLabelValues(s).Set(value)
	}
}

func IncReconnectScheduled() {
	reconnectsTotal.Inc()
}

func IncFrame(direction, frameType string) {
	framesTotal.WithLabelValues(direction, frameType).Inc()
}

func IncFrameDropped(reason string) {
	framesDroppedTotal.WithLabelValues(reason).Inc()
}

func IncSendRejected() {
	sendRejectedTotal.Inc()
}

func ObserveBackendRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	backendRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
