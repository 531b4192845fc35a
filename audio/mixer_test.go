package audio

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMixer_RendersAtScheduledTime(t *testing.T) {
	m := NewMixer(4)
	ended := make(chan struct{})

	// Two frames of silence, then the buffer.
	m.Schedule(&Buffer{Samples: []float32{0.5, -0.5}, SampleRate: 4}, 0.5, func() { close(ended) })

	out := make([]byte, 8)
	m.Render(out)

	got := make([]int16, 4)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(out[i*2:]))
	}
	assert.Equal(t, []int16{0, 0, 16384, -16384}, got)
	assert.InDelta(t, 1.0, m.CurrentTime(), 1e-9)

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("onEnded was not called")
	}
	assert.Equal(t, 0, m.Pending())
}

func TestMixer_StopRemovesVoice(t *testing.T) {
	m := NewMixer(4)
	src := m.Schedule(&Buffer{Samples: []float32{1, 1, 1, 1}, SampleRate: 4}, 0, func() {
		t.Error("stopped voice reported completion")
	})
	require.Equal(t, 1, m.Pending())

	src.Stop()
	assert.Equal(t, 0, m.Pending())

	out := make([]byte, 8)
	n, err := m.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, make([]byte, 8), out)
}

func TestMixer_WithScheduler(t *testing.T) {
	m := NewMixer(OutputSampleRate)
	drained := make(chan struct{}, 1)
	s := NewScheduler(m, func() { drained <- struct{}{} })

	s.Enqueue(bufferOf(0.01))
	s.Enqueue(bufferOf(0.01))

	m.Render(make([]byte, int(0.02*OutputSampleRate)*2))

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not drain")
	}
	assert.Equal(t, 0, s.Live())
}

func TestResample(t *testing.T) {
	out := resample([]float32{0, 1}, 2, 4)
	require.Len(t, out, 4)
	assert.InDelta(t, 0.5, out[1], 1e-6)
}
