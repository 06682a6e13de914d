package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "messenger"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	grpcHandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "grpc", Name: "handled_total",
		Help: "Unary gRPC calls completed, by service, method and code.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ws", Name: "connections",
		Help: "Open websocket connections.",
	})

	wsEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ws", Name: "events_total",
		Help: "Events written to websocket clients.",
	}, []string{"event"})

	amqpPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "amqp", Name: "publish_errors_total",
		Help: "Failed AMQP publishes.",
	})

	pushSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "push", Name: "recipients_total",
		Help: "Push recipients handed to the broadcaster.",
	}, []string{"broadcast_as"})

	pushFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "push", Name: "failures_total",
		Help: "Push broadcasts the broadcaster rejected.",
	}, []string{"broadcast_as"})

	policyDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "policy", Name: "denials_total",
		Help: "Requests refused by an authorization rule.",
	}, []string{"action"})
)

// HTTPMetricsMiddleware records count and latency per matched route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its two parts.
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

func IncWSActive() { wsConnections.Inc() }

func DecWSActive() { wsConnections.Dec() }

func IncWSEvent(event string) { wsEventsTotal.WithLabelValues(event).Inc() }

func IncAMQPPublishError() { amqpPublishErrors.Inc() }

func IncPushSent(broadcastAs string, recipients int) {
	pushSentTotal.WithLabelValues(broadcastAs).Add(float64(recipients))
}

func IncPushFailure(broadcastAs string) { pushFailuresTotal.WithLabelValues(broadcastAs).Inc() }

func IncPolicyDenial(action string) { policyDenialsTotal.WithLabelValues(action).Inc() }
