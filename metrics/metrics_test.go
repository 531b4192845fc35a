package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("test")

	m.RecordAudio("out", "sent", 100)
	m.RecordAudio("out", "dropped", 100)
	m.RecordToolCall("check_food_safety", "external", "ok", time.Second)
	m.RecordTransition("LISTENING")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AudioChunksTotal.WithLabelValues("out", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AudioChunksTotal.WithLabelValues("out", "dropped")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.AudioBytesTotal.WithLabelValues("out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("check_food_safety", "external", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "test_state_transitions_total"))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAudio("in", "played", 1)
		m.RecordDecodeError()
		m.RecordToolCall("x", "ui", "ok", 0)
		m.RecordTransition("IDLE")
		m.RecordConversationStart()
		m.RecordConversationEnd("stop")
		m.SetUIClients(2)
	})
}
