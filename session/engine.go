// Package session runs one live conversation at a time: it ties microphone
// capture, the Live transport, playback scheduling and tool calls to the
// conversation state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/room4-2/accessai/audio"
	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/gemini"
	"github.com/room4-2/accessai/metrics"
)

var (
	// ErrAlreadyRunning is returned by Start while a conversation is live.
	ErrAlreadyRunning = errors.New("conversation already running")
	// ErrNotRunning is returned by operations that need a live conversation.
	ErrNotRunning = errors.New("no conversation running")
)

// Config wires a Conversation to its collaborators.
type Config struct {
	Session   gemini.SessionConfig
	Connector gemini.Connector
	Executor  functions.Executor
	Cache     MapDataCache
	// OpenInput acquires the microphone. Nil means no capture.
	OpenInput audio.OpenInputFunc
	BlockSize int
	// Output is the playback clock. Nil plays into a silent mixer.
	Output audio.Output
}

// live is everything owned by one running conversation. It is released as a
// unit on stop.
type live struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	transport *gemini.Transport
	capture   *audio.Capture

	// eventMu is held while the dispatcher handles an event so stop can wait
	// for the in-flight one.
	eventMu sync.Mutex
	done    chan struct{}
}

// Conversation is the engine. It owns the state machine and the playback
// scheduler for its whole life and at most one live bundle at a time.
type Conversation struct {
	cfg         Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	transcript  func(role, text string)
	machine     *Machine
	coordinator *Coordinator
	scheduler   *audio.Scheduler

	// lifecycle serializes Start and stop; mu only guards the live pointer so
	// readers never wait on a transition.
	lifecycle sync.Mutex
	mu        sync.Mutex
	live      *live
}

// NewConversation creates an idle conversation.
func NewConversation(cfg Config, opts Options) *Conversation {
	c := &Conversation{
		cfg:        cfg,
		logger:     opts.logger(),
		metrics:    opts.Metrics,
		transcript: opts.OnTranscript,
		machine:    NewMachine(opts.Metrics),
	}
	if c.cfg.Cache == nil {
		c.cfg.Cache = NewMemoryMapCache()
	}
	out := cfg.Output
	if out == nil {
		out = audio.NewMixer(audio.OutputSampleRate)
	}
	c.coordinator = NewCoordinator(cfg.Executor, c.machine, c.cfg.Cache, opts)
	c.scheduler = audio.NewScheduler(out, func() { c.machine.PlaybackDrained() })
	return c
}

// Snapshot returns the current state and its side data.
func (c *Conversation) Snapshot() (State, *SideData) {
	return c.machine.Snapshot()
}

// Machine exposes the state machine for reads and subscriptions.
func (c *Conversation) Machine() *Machine {
	return c.machine
}

// Scheduler exposes the playback scheduler for reads.
func (c *Conversation) Scheduler() *audio.Scheduler {
	return c.scheduler
}

// ID is the running conversation's id, or "" when idle.
func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil {
		return ""
	}
	return c.live.id
}

// Running reports whether a conversation is live.
func (c *Conversation) Running() bool {
	return c.ID() != ""
}

// Start opens the session and the microphone. A microphone failure is
// returned as *audio.AcquisitionError but the conversation stays up without
// outbound audio.
func (c *Conversation) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.current() != nil {
		return ErrAlreadyRunning
	}
	if c.cfg.Connector == nil {
		return errors.New("no session connector configured")
	}

	lctx, cancel := context.WithCancel(ctx)
	l := &live{
		id:     uuid.New().String(),
		ctx:    lctx,
		cancel: cancel,
		transport: gemini.NewTransport(c.cfg.Connector,
			gemini.WithLogger(c.logger),
			gemini.WithMetrics(c.metrics),
		),
		capture: audio.NewCapture(c.cfg.OpenInput, c.cfg.BlockSize),
		done:    make(chan struct{}),
	}

	if err := l.transport.Open(lctx, c.cfg.Session); err != nil {
		cancel()
		return fmt.Errorf("failed to open session: %w", err)
	}

	c.mu.Lock()
	c.live = l
	c.mu.Unlock()

	c.machine.Start()
	c.metrics.RecordConversationStart()
	c.logger.Info("conversation started", "id", l.id)

	go c.dispatch(l)

	if c.cfg.OpenInput == nil {
		return nil
	}
	err := l.capture.Start(func(chunk audio.Chunk) {
		if l.ctx.Err() != nil {
			return
		}
		_ = l.transport.SendAudio(chunk.Data, chunk.MIMEType)
	})
	if err != nil {
		c.logger.Warn("microphone unavailable, continuing without capture", "id", l.id, "error", err)
		return err
	}
	return nil
}

// Stop tears the conversation down to Idle. It is safe to call from any
// goroutine and any number of times.
func (c *Conversation) Stop() error {
	return c.stop(nil, "stopped")
}

// stop releases l, or whatever is live when l is nil. A stale l is ignored.
func (c *Conversation) stop(l *live, reason string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	cur := c.live
	if cur == nil || (l != nil && l != cur) {
		c.mu.Unlock()
		if l == nil {
			c.machine.Stop()
		}
		return nil
	}
	c.live = nil
	c.mu.Unlock()

	c.machine.Stop()
	cur.cancel()
	transportErr := cur.transport.Close()
	captureErr := cur.capture.Stop()

	if l == nil {
		// Wait out an event the dispatcher may be applying right now.
		cur.eventMu.Lock()
		cur.eventMu.Unlock() //nolint:staticcheck
	}
	c.scheduler.Interrupt()

	c.metrics.RecordConversationEnd(reason)
	c.logger.Info("conversation stopped", "id", cur.id, "reason", reason)
	return errors.Join(transportErr, captureErr)
}

// Done is closed when the dispatcher of the current conversation exits. It
// returns nil when idle.
func (c *Conversation) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil {
		return nil
	}
	return c.live.done
}

func (c *Conversation) current() *live {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// SendText sends a typed user turn.
func (c *Conversation) SendText(text string) error {
	l := c.current()
	if l == nil {
		return ErrNotRunning
	}
	if err := l.transport.SendText(text); err != nil {
		return err
	}
	c.machine.TextSent()
	return nil
}

// Dismiss closes the current overlay and resumes the microphone.
func (c *Conversation) Dismiss() bool {
	if !c.machine.Dismiss() {
		return false
	}
	if l := c.current(); l != nil {
		l.capture.Resume()
	}
	return true
}

// OpenLiveMap switches the places list overlay to the interactive map with
// the same places.
func (c *Conversation) OpenLiveMap() bool {
	return c.machine.OpenLiveMap()
}

func (c *Conversation) dispatch(l *live) {
	defer close(l.done)

	for ev := range l.transport.Events() {
		switch e := ev.(type) {
		case gemini.Closed:
			c.logger.Info("session closed by server", "id", l.id, "reason", e.Reason)
			_ = c.stop(l, "closed")
			return
		case gemini.Error:
			c.logger.Error("session failed", "id", l.id, "error", e.Err)
			_ = c.stop(l, "error")
			return
		}

		l.eventMu.Lock()
		if l.ctx.Err() == nil {
			c.handle(l, ev)
		}
		l.eventMu.Unlock()
	}
}

func (c *Conversation) handle(l *live, ev gemini.Event) {
	switch e := ev.(type) {
	case gemini.Interrupted:
		c.scheduler.Interrupt()
	case gemini.AudioChunk:
		c.play(l, e)
	case gemini.ToolCallBatch:
		c.coordinator.Handle(l.ctx, e, l.transport, l.capture)
	case gemini.ToolCallCancelled:
		c.logger.Debug("tool calls cancelled", "id", l.id, "calls", e.IDs)
	case gemini.Text:
		c.emitTranscript("model", e.Text)
	case gemini.Transcript:
		c.emitTranscript(e.Role, e.Text)
	case gemini.TurnComplete:
		c.machine.TurnComplete()
	}
}

func (c *Conversation) play(l *live, chunk gemini.AudioChunk) {
	buf, err := audio.Decode(chunk.Data)
	if err != nil {
		c.metrics.RecordDecodeError()
		c.logger.Warn("dropping malformed audio chunk", "id", l.id, "error", err)
		return
	}
	c.machine.AudioReceived()
	c.scheduler.Enqueue(buf)
	c.metrics.RecordAudio("in", "played", len(chunk.Data))
}

func (c *Conversation) emitTranscript(role, text string) {
	if c.transcript != nil && text != "" {
		c.transcript(role, text)
	}
}
