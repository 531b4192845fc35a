package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/room4-2/accessai/audio"
)

func TestClockSilentlyEndsScheduledSpeech(t *testing.T) {
	mixer := audio.NewMixer(audio.OutputSampleRate)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ended := make(chan struct{})
	buf := &audio.Buffer{Samples: make([]float32, audio.OutputSampleRate/20), SampleRate: audio.OutputSampleRate}
	mixer.Schedule(buf, mixer.CurrentTime(), func() { close(ended) })

	go clockSilently(ctx, mixer)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled buffer never finished")
	}
	assert.Equal(t, 0, mixer.Pending())
	assert.GreaterOrEqual(t, mixer.CurrentTime(), 0.05)
}

func TestClockSilentlyStopsWithContext(t *testing.T) {
	mixer := audio.NewMixer(audio.OutputSampleRate)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		clockSilently(ctx, mixer)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clockSilently did not return after cancel")
	}
}
