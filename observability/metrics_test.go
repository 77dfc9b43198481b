package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

// newTestMetrics creates a ChatMetrics instance with a custom registry.
// This avoids conflicts with the global Prometheus registry and allows
// parallel testing.
func newTestMetrics(t *testing.T) *ChatMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "requests_total",
			Help:      "Total number of chat requests by channel and status",
		},
		[]string{"channel", "status"},
	)

	timeToFirstTokenSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "time_to_first_token_seconds",
			Help:      "Time from request to first streamed token in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"channel"},
	)

	streamDurationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "stream_duration_seconds",
			Help:      "Total stream duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"channel", "status"},
	)

	activeConnections := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "active_connections",
			Help:      "Number of currently open streaming connections",
		},
		[]string{"channel"},
	)

	activeConversations := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "active_conversations",
			Help:      "Number of in-memory conversations per brand",
		},
		[]string{"brand_id"},
	)

	conversationsSweptTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "conversations_swept_total",
			Help:      "Total conversations removed by TTL expiry",
		},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "errors_total",
			Help:      "Total chat errors by channel and error type",
		},
		[]string{"channel", "error_code"},
	)

	reg.MustRegister(
		requestsTotal,
		timeToFirstTokenSeconds,
		streamDurationSeconds,
		activeConnections,
		activeConversations,
		conversationsSweptTotal,
		errorsTotal,
	)

	return &ChatMetrics{
		RequestsTotal:           requestsTotal,
		TimeToFirstTokenSeconds: timeToFirstTokenSeconds,
		StreamDurationSeconds:   streamDurationSeconds,
		ActiveConnections:       activeConnections,
		ActiveConversations:     activeConversations,
		ConversationsSweptTotal: conversationsSweptTotal,
		ErrorsTotal:             errorsTotal,
	}
}

// ============================================================================
// InitMetrics Tests
// ============================================================================

// Note: InitMetrics uses promauto which registers with the default Prometheus
// registry. This test must only run once per test binary execution since
// duplicate registration will panic.
var initMetricsTestOnce bool

func TestInitMetrics(t *testing.T) {
	if initMetricsTestOnce {
		t.Skip("InitMetrics can only be called once per test run (promauto restriction)")
	}
	initMetricsTestOnce = true

	result := InitMetrics()

	if result == nil {
		t.Fatal("InitMetrics() returned nil")
	}
	if DefaultMetrics == nil {
		t.Fatal("DefaultMetrics should be set after InitMetrics()")
	}
	if DefaultMetrics != result {
		t.Error("DefaultMetrics should equal the returned value")
	}

	if result.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if result.TimeToFirstTokenSeconds == nil {
		t.Error("TimeToFirstTokenSeconds should not be nil")
	}
	if result.StreamDurationSeconds == nil {
		t.Error("StreamDurationSeconds should not be nil")
	}
	if result.ActiveConnections == nil {
		t.Error("ActiveConnections should not be nil")
	}
	if result.ActiveConversations == nil {
		t.Error("ActiveConversations should not be nil")
	}
	if result.ConversationsSweptTotal == nil {
		t.Error("ConversationsSweptTotal should not be nil")
	}
	if result.ErrorsTotal == nil {
		t.Error("ErrorsTotal should not be nil")
	}

	// Verify metrics can be used
	result.RecordRequest(ChannelHTTP, true)
	result.RecordError(ChannelSSE, ErrorCodeTimeout)
	result.ConnectionOpened(ChannelWebSocket)
	result.ConnectionClosed(ChannelWebSocket)
}

// ============================================================================
// Constants Tests
// ============================================================================

func TestConstants(t *testing.T) {
	if metricsNamespace != "brandchat" {
		t.Errorf("metricsNamespace = %q, want %q", metricsNamespace, "brandchat")
	}
	if chatSubsystem != "chat" {
		t.Errorf("chatSubsystem = %q, want %q", chatSubsystem, "chat")
	}
}

func TestChannelConstants(t *testing.T) {
	if ChannelHTTP != "http" {
		t.Errorf("ChannelHTTP = %q, want %q", ChannelHTTP, "http")
	}
	if ChannelSSE != "sse" {
		t.Errorf("ChannelSSE = %q, want %q", ChannelSSE, "sse")
	}
	if ChannelWebSocket != "websocket" {
		t.Errorf("ChannelWebSocket = %q, want %q", ChannelWebSocket, "websocket")
	}
}

func TestErrorCodeConstants(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrorCodeValidation, "validation"},
		{ErrorCodeBrandNotFound, "brand_not_found"},
		{ErrorCodeLLMError, "llm_error"},
		{ErrorCodeRetrieval, "retrieval_error"},
		{ErrorCodeTimeout, "timeout"},
		{ErrorCodeInternal, "internal"},
		{ErrorCodeClientDisconnect, "client_disconnect"},
	}

	for _, tt := range tests {
		if string(tt.code) != tt.want {
			t.Errorf("ErrorCode = %q, want %q", tt.code, tt.want)
		}
	}
}

// ============================================================================
// RecordRequest Tests
// ============================================================================

func TestChatMetrics_RecordRequest_Success(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(ChannelHTTP, true)

	val := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("http", "success"))
	if val != 1 {
		t.Errorf("RequestsTotal[http,success] = %f, want 1", val)
	}
}

func TestChatMetrics_RecordRequest_Error(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(ChannelSSE, false)

	val := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("sse", "error"))
	if val != 1 {
		t.Errorf("RequestsTotal[sse,error] = %f, want 1", val)
	}
}

func TestChatMetrics_RecordRequest_Multiple(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(ChannelHTTP, true)
	m.RecordRequest(ChannelHTTP, true)
	m.RecordRequest(ChannelHTTP, false)
	m.RecordRequest(ChannelWebSocket, true)

	successVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("http", "success"))
	if successVal != 2 {
		t.Errorf("RequestsTotal[http,success] = %f, want 2", successVal)
	}

	errorVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("http", "error"))
	if errorVal != 1 {
		t.Errorf("RequestsTotal[http,error] = %f, want 1", errorVal)
	}

	wsVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("websocket", "success"))
	if wsVal != 1 {
		t.Errorf("RequestsTotal[websocket,success] = %f, want 1", wsVal)
	}
}

// ============================================================================
// RecordError Tests
// ============================================================================

func TestChatMetrics_RecordError(t *testing.T) {
	m := newTestMetrics(t)

	tests := []struct {
		channel Channel
		code    ErrorCode
	}{
		{ChannelHTTP, ErrorCodeValidation},
		{ChannelHTTP, ErrorCodeBrandNotFound},
		{ChannelHTTP, ErrorCodeLLMError},
		{ChannelSSE, ErrorCodeTimeout},
		{ChannelSSE, ErrorCodeRetrieval},
		{ChannelWebSocket, ErrorCodeInternal},
		{ChannelWebSocket, ErrorCodeClientDisconnect},
	}

	for _, tt := range tests {
		m.RecordError(tt.channel, tt.code)

		val := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(string(tt.channel), string(tt.code)))
		if val != 1 {
			t.Errorf("ErrorsTotal[%s,%s] = %f, want 1", tt.channel, tt.code, val)
		}
	}
}

// ============================================================================
// Connection Gauge Tests
// ============================================================================

func TestChatMetrics_ConnectionLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.ConnectionOpened(ChannelWebSocket)
	m.ConnectionOpened(ChannelWebSocket)
	m.ConnectionOpened(ChannelSSE)

	wsVal := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("websocket"))
	if wsVal != 2 {
		t.Errorf("ActiveConnections[websocket] = %f, want 2", wsVal)
	}

	m.ConnectionClosed(ChannelWebSocket)

	wsVal = testutil.ToFloat64(m.ActiveConnections.WithLabelValues("websocket"))
	if wsVal != 1 {
		t.Errorf("ActiveConnections[websocket] = %f, want 1", wsVal)
	}

	sseVal := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("sse"))
	if sseVal != 1 {
		t.Errorf("ActiveConnections[sse] = %f, want 1", sseVal)
	}
}

// ============================================================================
// Conversation Gauge / Sweep Tests
// ============================================================================

func TestChatMetrics_SetActiveConversations(t *testing.T) {
	m := newTestMetrics(t)

	m.SetActiveConversations("techpro", 5)
	m.SetActiveConversations("acme", 2)
	m.SetActiveConversations("techpro", 3)

	techproVal := testutil.ToFloat64(m.ActiveConversations.WithLabelValues("techpro"))
	if techproVal != 3 {
		t.Errorf("ActiveConversations[techpro] = %f, want 3", techproVal)
	}

	acmeVal := testutil.ToFloat64(m.ActiveConversations.WithLabelValues("acme"))
	if acmeVal != 2 {
		t.Errorf("ActiveConversations[acme] = %f, want 2", acmeVal)
	}
}

func TestChatMetrics_RecordSweep(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSweep(3)
	m.RecordSweep(0) // no-op
	m.RecordSweep(2)

	val := testutil.ToFloat64(m.ConversationsSweptTotal)
	if val != 5 {
		t.Errorf("ConversationsSweptTotal = %f, want 5", val)
	}
}

// ============================================================================
// Histogram Tests
// ============================================================================

func TestChatMetrics_RecordTimeToFirstToken(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordTimeToFirstToken(ChannelSSE, 0.5)

	count := testutil.CollectAndCount(m.TimeToFirstTokenSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

func TestChatMetrics_RecordStreamDuration(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordStreamDuration(ChannelWebSocket, 10.5, true)
	m.RecordStreamDuration(ChannelSSE, 5.0, false)

	count := testutil.CollectAndCount(m.StreamDurationSeconds)
	if count == 0 {
		t.Error("Expected at least one metric to be collected")
	}
}

// ============================================================================
// Integration / Scenario Tests
// ============================================================================

func TestChatMetrics_CompleteStreamScenario(t *testing.T) {
	m := newTestMetrics(t)

	// Simulate a complete successful WebSocket stream
	m.ConnectionOpened(ChannelWebSocket)
	m.RecordTimeToFirstToken(ChannelWebSocket, 0.5)
	m.RecordStreamDuration(ChannelWebSocket, 30.0, true)
	m.ConnectionClosed(ChannelWebSocket)
	m.RecordRequest(ChannelWebSocket, true)

	activeVal := testutil.ToFloat64(m.ActiveConnections.WithLabelValues("websocket"))
	if activeVal != 0 {
		t.Errorf("ActiveConnections should be 0 after close, got %f", activeVal)
	}

	requestsVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("websocket", "success"))
	if requestsVal != 1 {
		t.Errorf("RequestsTotal[success] should be 1, got %f", requestsVal)
	}
}

func TestChatMetrics_FailedStreamScenario(t *testing.T) {
	m := newTestMetrics(t)

	m.ConnectionOpened(ChannelSSE)
	m.RecordError(ChannelSSE, ErrorCodeLLMError)
	m.RecordStreamDuration(ChannelSSE, 5.0, false)
	m.ConnectionClosed(ChannelSSE)
	m.RecordRequest(ChannelSSE, false)

	requestsVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("sse", "error"))
	if requestsVal != 1 {
		t.Errorf("RequestsTotal[error] should be 1, got %f", requestsVal)
	}

	errorsVal := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("sse", "llm_error"))
	if errorsVal != 1 {
		t.Errorf("ErrorsTotal[llm_error] should be 1, got %f", errorsVal)
	}
}

// ============================================================================
// Concurrent Safety Tests
// ============================================================================

func TestChatMetrics_ConcurrentSafety(t *testing.T) {
	m := newTestMetrics(t)

	done := make(chan bool, 80)

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordRequest(ChannelHTTP, true)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordError(ChannelSSE, ErrorCodeTimeout)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.ConnectionOpened(ChannelWebSocket)
			m.ConnectionClosed(ChannelWebSocket)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		go func() {
			m.RecordTimeToFirstToken(ChannelSSE, 0.5)
			m.RecordStreamDuration(ChannelSSE, 10.0, true)
			m.RecordSweep(1)
			done <- true
		}()
	}

	for i := 0; i < 80; i++ {
		<-done
	}

	requestsVal := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("http", "success"))
	if requestsVal != 20 {
		t.Errorf("RequestsTotal[http,success] = %f, want 20", requestsVal)
	}

	errorsVal := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("sse", "timeout"))
	if errorsVal != 20 {
		t.Errorf("ErrorsTotal[sse,timeout] = %f, want 20", errorsVal)
	}

	sweptVal := testutil.ToFloat64(m.ConversationsSweptTotal)
	if sweptVal != 20 {
		t.Errorf("ConversationsSweptTotal = %f, want 20", sweptVal)
	}
}
