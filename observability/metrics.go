// Package observability provides Prometheus metrics for the chat backend.
//
// # Description
//
// This package implements Prometheus metrics for monitoring chat traffic
// across all delivery channels. Metrics include:
//   - Request counters (by channel, status, error type)
//   - Latency histograms (time to first token, total stream duration)
//   - Active connection and conversation gauges
//   - Conversation sweep counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "brandchat"

// Subsystem for chat traffic metrics
const chatSubsystem = "chat"

// ChatMetrics holds all Prometheus metrics for chat operations.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring chat performance
// and resource usage. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - RequestsTotal: Counter of chat requests by channel and status
//   - TimeToFirstTokenSeconds: Histogram of time to first streamed token
//   - StreamDurationSeconds: Histogram of total stream duration
//   - ActiveConnections: Gauge of currently open streaming connections
//   - ActiveConversations: Gauge of in-memory conversations by brand
//   - ConversationsSweptTotal: Counter of conversations removed by the TTL sweeper
//   - ErrorsTotal: Counter of errors by channel and error type
//
// # Thread Safety
//
// All operations are thread-safe.
type ChatMetrics struct {
	// RequestsTotal counts chat requests by channel and status.
	// Labels: channel (http, sse, websocket), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// TimeToFirstTokenSeconds measures latency to first streamed token.
	// Labels: channel (sse, websocket)
	TimeToFirstTokenSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total stream duration.
	// Labels: channel (sse, websocket), status (success, error)
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveConnections tracks currently open streaming connections.
	// Labels: channel (sse, websocket)
	ActiveConnections *prometheus.GaugeVec

	// ActiveConversations tracks in-memory conversations per brand.
	// Labels: brand_id
	ActiveConversations *prometheus.GaugeVec

	// ConversationsSweptTotal counts conversations removed by TTL expiry.
	ConversationsSweptTotal prometheus.Counter

	// ErrorsTotal counts errors by channel and error type.
	// Labels: channel, error_code (validation, llm_error, retrieval_error, ...)
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of ChatMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ChatMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, before the first request is served.
//
// # Outputs
//
//   - *ChatMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total number of chat requests by channel and status",
			},
			[]string{"channel", "status"},
		),

		TimeToFirstTokenSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "time_to_first_token_seconds",
				Help:      "Time from request to first streamed token in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"channel"},
		),

		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"channel", "status"},
		),

		ActiveConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_connections",
				Help:      "Number of currently open streaming connections",
			},
			[]string{"channel"},
		),

		ActiveConversations: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_conversations",
				Help:      "Number of in-memory conversations per brand",
			},
			[]string{"brand_id"},
		),

		ConversationsSweptTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "conversations_swept_total",
				Help:      "Total conversations removed by TTL expiry",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "errors_total",
				Help:      "Total chat errors by channel and error type",
			},
			[]string{"channel", "error_code"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeBrandNotFound indicates an unknown or inactive brand.
	ErrorCodeBrandNotFound ErrorCode = "brand_not_found"

	// ErrorCodeLLMError indicates a completion backend failure.
	ErrorCodeLLMError ErrorCode = "llm_error"

	// ErrorCodeRetrieval indicates a catalog retrieval failure.
	ErrorCodeRetrieval ErrorCode = "retrieval_error"

	// ErrorCodeTimeout indicates operation timeout.
	ErrorCodeTimeout ErrorCode = "timeout"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"

	// ErrorCodeClientDisconnect indicates the client went away mid-stream.
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
)

// =============================================================================
// Channel Names
// =============================================================================

// Channel represents a chat delivery channel for metrics labeling.
type Channel string

const (
	// ChannelHTTP is the single-shot JSON chat endpoint.
	ChannelHTTP Channel = "http"

	// ChannelSSE is the server-sent-events streaming endpoint.
	ChannelSSE Channel = "sse"

	// ChannelWebSocket is the bidirectional WebSocket endpoint.
	ChannelWebSocket Channel = "websocket"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed chat request.
//
// # Inputs
//
//   - channel: The delivery channel that handled the request.
//   - success: Whether the request completed successfully.
func (m *ChatMetrics) RecordRequest(channel Channel, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(channel), status).Inc()
}

// RecordError records a chat error.
//
// # Inputs
//
//   - channel: The channel where the error occurred.
//   - code: The error type code.
func (m *ChatMetrics) RecordError(channel Channel, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(channel), string(code)).Inc()
}

// ConnectionOpened increments the active connections gauge.
func (m *ChatMetrics) ConnectionOpened(channel Channel) {
	m.ActiveConnections.WithLabelValues(string(channel)).Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (m *ChatMetrics) ConnectionClosed(channel Channel) {
	m.ActiveConnections.WithLabelValues(string(channel)).Dec()
}

// RecordTimeToFirstToken records the time to first token latency.
//
// # Inputs
//
//   - channel: The channel handling the stream.
//   - seconds: Time to first token in seconds.
func (m *ChatMetrics) RecordTimeToFirstToken(channel Channel, seconds float64) {
	m.TimeToFirstTokenSeconds.WithLabelValues(string(channel)).Observe(seconds)
}

// RecordStreamDuration records the total stream duration.
//
// # Inputs
//
//   - channel: The channel that handled the stream.
//   - seconds: Total duration in seconds.
//   - success: Whether the stream completed successfully.
func (m *ChatMetrics) RecordStreamDuration(channel Channel, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(string(channel), status).Observe(seconds)
}

// SetActiveConversations sets the conversation gauge for a brand.
func (m *ChatMetrics) SetActiveConversations(brandID string, count int) {
	m.ActiveConversations.WithLabelValues(brandID).Set(float64(count))
}

// RecordSweep adds to the swept-conversation counter.
func (m *ChatMetrics) RecordSweep(count int) {
	if count > 0 {
		m.ConversationsSweptTotal.Add(float64(count))
	}
}
