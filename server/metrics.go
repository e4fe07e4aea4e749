package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
)

// ServerMetrics defines observability hooks for gRPC server operations.
// All methods must be safe for concurrent use.
type ServerMetrics interface {
	// IncrGRPCRequest increments the count for an RPC method invocation.
	// 'code' is the gRPC status code returned to the client.
	IncrGRPCRequest(method string, code codes.Code)

	// IncrValidationError increments validation failure counters.
	// 'errorType' is one of the ErrorType* constants.
	IncrValidationError(method string, errorType string)

	// IncrServerError increments counts for requests rejected or failed by the server itself,
	// such as rate limiting, overload, or timeouts.
	IncrServerError(method string, errorType string)

	// ObserveRequestLatency records end-to-end latency for a gRPC method call.
	ObserveRequestLatency(method string, latency time.Duration)

	// IncrConcurrentRequests adjusts the count of concurrently active requests.
	// Use delta +1 at request start, -1 when completed.
	IncrConcurrentRequests(method string, delta int)

	// SetServerState sets the health gauge.
	SetServerState(isHealthy bool)

	// SetActiveConnections sets the number of live gRPC connections to this server.
	SetActiveConnections(count int)
}

// NoOpServerMetrics provides a no-operation implementation of ServerMetrics.
type NoOpServerMetrics struct{}

// NewNoOpServerMetrics creates a new no-operation metrics implementation.
func NewNoOpServerMetrics() ServerMetrics {
	return &NoOpServerMetrics{}
}

func (n *NoOpServerMetrics) IncrGRPCRequest(method string, code codes.Code)             {}
func (n *NoOpServerMetrics) IncrValidationError(method string, errorType string)        {}
func (n *NoOpServerMetrics) IncrServerError(method string, errorType string)            {}
func (n *NoOpServerMetrics) ObserveRequestLatency(method string, latency time.Duration) {}
func (n *NoOpServerMetrics) IncrConcurrentRequests(method string, delta int)            {}
func (n *NoOpServerMetrics) SetServerState(isHealthy bool)                              {}
func (n *NoOpServerMetrics) SetActiveConnections(count int)                             {}

// PrometheusServerMetrics implements ServerMetrics with client_golang collectors.
type PrometheusServerMetrics struct {
	RequestsTotal     *prometheus.CounterVec   // method, code
	ValidationErrors  *prometheus.CounterVec   // method, type
	ServerErrors      *prometheus.CounterVec   // method, type
	RequestSeconds    *prometheus.HistogramVec // method
	InFlight          *prometheus.GaugeVec     // method
	Healthy           prometheus.Gauge
	ActiveConnections prometheus.Gauge
}

var _ ServerMetrics = (*PrometheusServerMetrics)(nil)

// NewPrometheusServerMetrics creates the collectors and registers them on reg.
// A nil reg skips registration.
func NewPrometheusServerMetrics(reg prometheus.Registerer) *PrometheusServerMetrics {
	m := &PrometheusServerMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_grpc_requests_total",
				Help: "Total gRPC requests by method and status code",
			},
			[]string{"method", "code"},
		),
		ValidationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_grpc_validation_errors_total",
				Help: "Total rejected requests by method and validation error type",
			},
			[]string{"method", "type"},
		),
		ServerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "davlock_grpc_server_errors_total",
				Help: "Total server-side failures by method and error type",
			},
			[]string{"method", "type"},
		),
		RequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "davlock_grpc_request_duration_seconds",
				Help:    "gRPC request latency by method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "davlock_grpc_requests_in_flight",
				Help: "Requests currently being handled, by method",
			},
			[]string{"method"},
		),
		Healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "davlock_server_healthy",
			Help: "1 when the server is serving requests",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "davlock_grpc_active_connections",
			Help: "Number of open gRPC client connections",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RequestsTotal,
			m.ValidationErrors,
			m.ServerErrors,
			m.RequestSeconds,
			m.InFlight,
			m.Healthy,
			m.ActiveConnections,
		)
	}
	return m
}

func (m *PrometheusServerMetrics) IncrGRPCRequest(method string, code codes.Code) {
	m.RequestsTotal.WithLabelValues(method, code.String()).Inc()
}

func (m *PrometheusServerMetrics) IncrValidationError(method string, errorType string) {
	m.ValidationErrors.WithLabelValues(method, errorType).Inc()
}

func (m *PrometheusServerMetrics) IncrServerError(method string, errorType string) {
	m.ServerErrors.WithLabelValues(method, errorType).Inc()
}

func (m *PrometheusServerMetrics) ObserveRequestLatency(method string, latency time.Duration) {
	m.RequestSeconds.WithLabelValues(method).Observe(latency.Seconds())
}

func (m *PrometheusServerMetrics) IncrConcurrentRequests(method string, delta int) {
	m.InFlight.WithLabelValues(method).Add(float64(delta))
}

func (m *PrometheusServerMetrics) SetServerState(isHealthy bool) {
	if isHealthy {
		m.Healthy.Set(1)
		return
	}
	m.Healthy.Set(0)
}

func (m *PrometheusServerMetrics) SetActiveConnections(count int) {
	m.ActiveConnections.Set(float64(count))
}
