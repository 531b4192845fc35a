package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/room4-2/accessai/audio"
	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/gemini"
	"github.com/room4-2/accessai/gemini/geminitest"
)

const waitFor = 2 * time.Second

type fakeSource struct {
	at      float64
	onEnded func()
	stopped atomic.Bool
}

func (s *fakeSource) Stop() { s.stopped.Store(true) }

// fakeOutput is a manual clock. Sources end only when the test says so.
type fakeOutput struct {
	mu      sync.Mutex
	now     float64
	sources []*fakeSource
}

func (o *fakeOutput) CurrentTime() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) Schedule(_ *audio.Buffer, at float64, onEnded func()) audio.Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := &fakeSource{at: at, onEnded: onEnded}
	o.sources = append(o.sources, src)
	return src
}

func (o *fakeOutput) Sources() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.sources...)
}

func (o *fakeOutput) finishAll() {
	for _, src := range o.Sources() {
		if !src.stopped.Load() {
			src.onEnded()
		}
	}
}

type fakeMic struct {
	mu        sync.Mutex
	onSamples func([]float32)
	stopped   bool
}

func (d *fakeMic) Start(onSamples func([]float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSamples = onSamples
	return nil
}

func (d *fakeMic) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeMic) Close() error { return nil }

func (d *fakeMic) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

func (d *fakeMic) feed(samples []float32) {
	d.mu.Lock()
	cb := d.onSamples
	d.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

type harness struct {
	fake *geminitest.FakeSession
	out  *fakeOutput
	mic  *fakeMic
	rec  *recorder
	conv *Conversation
}

func newHarness(t *testing.T, exec functions.Executor, micErr error) *harness {
	t.Helper()
	h := &harness{
		fake: geminitest.NewFakeSession(),
		out:  &fakeOutput{},
		mic:  &fakeMic{},
		rec:  &recorder{},
	}
	h.conv = NewConversation(Config{
		Session:   gemini.SessionConfig{Persona: DefaultSystemPrompt, Tools: functions.Declarations()},
		Connector: h.fake.Connector(),
		Executor:  exec,
		OpenInput: func(int) (audio.InputDevice, error) {
			if micErr != nil {
				return nil, micErr
			}
			return h.mic, nil
		},
		BlockSize: 4,
		Output:    h.out,
	}, Options{PlacesDelay: 10 * time.Millisecond})
	h.conv.Machine().Subscribe(h.rec)
	t.Cleanup(func() { _ = h.conv.Stop() })
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.conv.Machine().Current() == want },
		waitFor, 5*time.Millisecond, "want %s, have %s", want, h.conv.Machine().Current())
}

func pcm(samples int) []byte {
	return make([]byte, samples*2)
}

func TestConversation_StartStreamsMicrophone(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.conv.Start(context.Background()))
	assert.Equal(t, Listening, h.conv.Machine().Current())
	assert.NotEmpty(t, h.conv.ID())
	assert.ErrorIs(t, h.conv.Start(context.Background()), ErrAlreadyRunning)

	h.mic.feed([]float32{0.1, 0.2, 0.3, 0.4, 0.5})
	require.Eventually(t, func() bool { return len(h.fake.Audio()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Len(t, h.fake.Audio()[0], 8)
	require.NotNil(t, h.fake.Config())
	assert.Len(t, h.fake.Config().Tools[0].FunctionDeclarations, len(functions.All()))
}

func TestConversation_SpeakingAndDrain(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	h.fake.Push(geminitest.AudioMessage(pcm(2400)))
	h.fake.Push(geminitest.AudioMessage(pcm(2400)))
	h.waitState(t, Speaking)
	require.Eventually(t, func() bool { return len(h.out.Sources()) == 2 }, waitFor, 5*time.Millisecond)

	srcs := h.out.Sources()
	assert.InDelta(t, 0.0, srcs[0].at, 1e-9)
	assert.InDelta(t, 0.1, srcs[1].at, 1e-9, "gapless")

	h.out.finishAll()
	h.waitState(t, Listening)
	assert.Equal(t, []State{Listening, Speaking, Listening}, h.rec.States())
}

func TestConversation_InterruptStopsPlayback(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	for i := 0; i < 3; i++ {
		h.fake.Push(geminitest.AudioMessage(pcm(240)))
	}
	require.Eventually(t, func() bool { return len(h.out.Sources()) == 3 }, waitFor, 5*time.Millisecond)

	h.fake.Push(geminitest.InterruptedMessage())
	require.Eventually(t, func() bool { return h.conv.Scheduler().Live() == 0 }, waitFor, 5*time.Millisecond)
	assert.Zero(t, h.conv.Scheduler().NextStartTime())
	for _, src := range h.out.Sources() {
		assert.True(t, src.stopped.Load())
	}
	h.waitState(t, Listening)
}

func TestConversation_MalformedAudioIsDropped(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	h.fake.Push(geminitest.AudioMessage([]byte{1, 2, 3}))
	h.fake.Push(geminitest.AudioMessage(pcm(10)))
	h.waitState(t, Speaking)
	assert.Len(t, h.out.Sources(), 1)
}

func TestConversation_UIToolCall(t *testing.T) {
	exec := constExecutor("unused", nil)
	h := newHarness(t, exec, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	h.fake.Push(geminitest.ToolCallMessage(&genai.FunctionCall{ID: "1", Name: "show_route_map"}))
	h.waitState(t, ShowingMap)

	assert.Zero(t, exec.calls.Load())
	assert.Never(t, func() bool { return len(h.fake.Responses()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	// The microphone is paused until the overlay is dismissed.
	h.mic.feed([]float32{1, 1, 1, 1})
	assert.True(t, h.conv.Dismiss())
	assert.False(t, h.conv.Dismiss())
	h.mic.feed([]float32{1, 1, 1, 1})
	require.Eventually(t, func() bool { return len(h.fake.Audio()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, Listening, h.conv.Machine().Current())
}

func TestConversation_ExternalToolCall(t *testing.T) {
	exec := &countingExecutor{result: func(name string, args map[string]any) (string, error) {
		if args["food"] == "sushi" {
			return "avoid raw fish", nil
		}
		return "", errors.New("rejected")
	}}
	h := newHarness(t, exec, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	h.fake.Push(geminitest.ToolCallMessage(
		&genai.FunctionCall{ID: "2", Name: "check_food_safety", Args: map[string]any{"food": "sushi"}},
		&genai.FunctionCall{ID: "3", Name: "check_food_safety", Args: map[string]any{"food": "brie"}},
	))
	require.Eventually(t, func() bool { return len(h.fake.Responses()) == 2 }, waitFor, 5*time.Millisecond)

	results := map[string]any{}
	for _, r := range h.fake.Responses() {
		assert.Equal(t, "check_food_safety", r.Name)
		results[r.ID] = r.Response["result"]
	}
	assert.Equal(t, "avoid raw fish", results["2"])
	assert.Equal(t, functions.FallbackResult, results["3"])

	h.waitState(t, Listening)
	assert.Equal(t, []State{Listening, Processing, Listening}, h.rec.States())
}

func TestConversation_PlacesListAndLiveMap(t *testing.T) {
	exec := &placesExecutor{places: functions.PlaceResult{Places: []functions.Place{{Name: "Boots"}}}}
	h := newHarness(t, exec, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	assert.False(t, h.conv.OpenLiveMap(), "no places yet")

	h.fake.Push(geminitest.ToolCallMessage(&genai.FunctionCall{
		ID: "p", Name: functions.FindNearbyPlaces, Args: map[string]any{"place_type": "pharmacy"},
	}))
	h.waitState(t, ShowingPlacesList)
	require.Eventually(t, func() bool { return len(h.fake.Responses()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "I found 1 pharmacy nearby: Boots.", h.fake.Responses()[0].Response["result"])

	require.True(t, h.conv.OpenLiveMap())
	state, side := h.conv.Machine().Snapshot()
	assert.Equal(t, ShowingLiveMap, state)
	require.NotNil(t, side)
	assert.Equal(t, "Boots", side.Places[0].Name)
}

func TestConversation_SendText(t *testing.T) {
	h := newHarness(t, nil, nil)
	assert.ErrorIs(t, h.conv.SendText("hi"), ErrNotRunning)

	require.NoError(t, h.conv.Start(context.Background()))
	require.NoError(t, h.conv.SendText("Can I eat sushi?"))
	assert.Equal(t, Processing, h.conv.Machine().Current())
	require.Eventually(t, func() bool { return len(h.fake.Texts()) == 1 }, waitFor, 5*time.Millisecond)

	h.fake.Push(geminitest.TurnCompleteMessage())
	h.waitState(t, Listening)
}

func TestConversation_MicrophoneDeniedKeepsSession(t *testing.T) {
	h := newHarness(t, nil, errors.New("permission denied"))

	err := h.conv.Start(context.Background())
	var acq *audio.AcquisitionError
	require.ErrorAs(t, err, &acq)

	assert.True(t, h.conv.Running())
	assert.Equal(t, Listening, h.conv.Machine().Current())
	require.NoError(t, h.conv.SendText("hello"))
	require.Eventually(t, func() bool { return len(h.fake.Texts()) == 1 }, waitFor, 5*time.Millisecond)
}

func TestConversation_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.conv.Stop(), "stop while idle")
	assert.Equal(t, Idle, h.conv.Machine().Current())

	require.NoError(t, h.conv.Start(context.Background()))
	h.fake.Push(geminitest.AudioMessage(pcm(240)))
	h.waitState(t, Speaking)
	done := h.conv.Done()

	require.NoError(t, h.conv.Stop())
	require.NoError(t, h.conv.Stop())
	assert.Equal(t, Idle, h.conv.Machine().Current())
	assert.False(t, h.conv.Running())
	assert.True(t, h.fake.Closed())
	assert.Zero(t, h.conv.Scheduler().Live())
	assert.ErrorIs(t, h.conv.SendText("late"), ErrNotRunning)

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("dispatcher did not exit")
	}

	// Capture is detached: frames after stop go nowhere.
	h.mic.feed([]float32{1, 1, 1, 1})
	assert.Empty(t, h.fake.Audio())
}

func TestConversation_ServerCloseEndsConversation(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.conv.Start(context.Background()))

	h.fake.CloseFromServer()
	h.waitState(t, Idle)
	assert.False(t, h.conv.Running())
	require.Eventually(t, h.mic.Stopped, waitFor, 5*time.Millisecond)
}

func TestConversation_ConnectFailureEndsConversation(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.fake.ConnectErr = errors.New("bad key")
	require.NoError(t, h.conv.Start(context.Background()))

	h.waitState(t, Idle)
	assert.Equal(t, []State{Listening, Idle}, h.rec.States())
}

func TestConversation_RestartAfterStop(t *testing.T) {
	first, second := geminitest.NewFakeSession(), geminitest.NewFakeSession()
	var n atomic.Int32
	connect := func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (gemini.LiveSession, error) {
		if n.Add(1) == 1 {
			return first.Connector()(ctx, model, cfg)
		}
		return second.Connector()(ctx, model, cfg)
	}
	conv := NewConversation(Config{Connector: connect, Output: &fakeOutput{}}, Options{})

	require.NoError(t, conv.Start(context.Background()))
	firstID := conv.ID()
	require.NoError(t, conv.Stop())

	require.NoError(t, conv.Start(context.Background()))
	t.Cleanup(func() { _ = conv.Stop() })
	assert.NotEqual(t, firstID, conv.ID())
	require.NoError(t, conv.SendText("again"))
	require.Eventually(t, func() bool { return len(second.Texts()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, first.Texts())
}
