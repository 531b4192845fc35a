// Package metrics exposes Prometheus counters for the conversation engine.
// All Record methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for one process.
type Metrics struct {
	registry *prometheus.Registry

	AudioChunksTotal      *prometheus.CounterVec
	AudioBytesTotal       *prometheus.CounterVec
	DecodeErrorsTotal     prometheus.Counter
	ToolCallsTotal        *prometheus.CounterVec
	ToolCallDuration      *prometheus.HistogramVec
	StateTransitionsTotal *prometheus.CounterVec
	ConversationsActive   prometheus.Gauge
	ConversationsTotal    *prometheus.CounterVec
	UIClientsActive       prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "accessai"
	}

	registry := prometheus.NewRegistry()

	audioChunks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_chunks_total",
		Help:      "Audio chunks by direction and outcome",
	}, []string{"direction", "outcome"})

	audioBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_bytes_total",
		Help:      "Audio bytes by direction",
	}, []string{"direction"})

	decodeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_decode_errors_total",
		Help:      "Inbound audio chunks dropped as malformed",
	})

	toolCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool calls by name, kind and outcome",
	}, []string{"name", "kind", "outcome"})

	toolDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_call_duration_seconds",
		Help:      "External tool execution time",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"name"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Conversation state transitions by target state",
	}, []string{"state"})

	conversationsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "conversations_active",
		Help:      "Number of running conversations",
	})

	conversationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversations_total",
		Help:      "Finished conversations by end reason",
	}, []string{"reason"})

	uiClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ui_clients_active",
		Help:      "Connected UI websocket clients",
	})

	registry.MustRegister(
		audioChunks,
		audioBytes,
		decodeErrors,
		toolCalls,
		toolDuration,
		transitions,
		conversationsActive,
		conversationsTotal,
		uiClients,
	)

	return &Metrics{
		registry:              registry,
		AudioChunksTotal:      audioChunks,
		AudioBytesTotal:       audioBytes,
		DecodeErrorsTotal:     decodeErrors,
		ToolCallsTotal:        toolCalls,
		ToolCallDuration:      toolDuration,
		StateTransitionsTotal: transitions,
		ConversationsActive:   conversationsActive,
		ConversationsTotal:    conversationsTotal,
		UIClientsActive:       uiClients,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAudio records one audio chunk. direction is "in" or "out"; outcome is
// "sent", "dropped" or "played".
func (m *Metrics) RecordAudio(direction, outcome string, bytes int) {
	if m == nil {
		return
	}
	m.AudioChunksTotal.WithLabelValues(direction, outcome).Inc()
	if outcome != "dropped" {
		m.AudioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
	}
}

// RecordDecodeError records a malformed inbound chunk.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrorsTotal.Inc()
}

// RecordToolCall records a handled tool call. kind is "ui" or "external".
func (m *Metrics) RecordToolCall(name, kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(name, kind, outcome).Inc()
	if kind == "external" {
		m.ToolCallDuration.WithLabelValues(name).Observe(duration.Seconds())
	}
}

// RecordTransition records entry into state.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.StateTransitionsTotal.WithLabelValues(state).Inc()
}

// RecordConversationStart marks a conversation as running.
func (m *Metrics) RecordConversationStart() {
	if m == nil {
		return
	}
	m.ConversationsActive.Inc()
}

// RecordConversationEnd marks a conversation as finished.
func (m *Metrics) RecordConversationEnd(reason string) {
	if m == nil {
		return
	}
	m.ConversationsActive.Dec()
	m.ConversationsTotal.WithLabelValues(reason).Inc()
}

// SetUIClients sets the number of connected UI clients.
func (m *Metrics) SetUIClients(n int) {
	if m == nil {
		return
	}
	m.UIClientsActive.Set(float64(n))
}
