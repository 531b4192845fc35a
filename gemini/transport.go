// Package gemini owns the duplex Live API session: it connects, serializes
// outbound audio, text and tool responses, and turns inbound server messages
// into ordered events.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/room4-2/accessai/metrics"
)

const (
	outboxSize = 256
	eventsSize = 64
)

var (
	// ErrClosed is returned by sends after Close or after the session ended.
	ErrClosed = errors.New("session transport is closed")
	// ErrAlreadyOpen is returned by a second call to Open.
	ErrAlreadyOpen = errors.New("session transport already opened")
)

// LiveSession is the subset of *genai.Session the transport drives.
type LiveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendClientContent(input genai.LiveClientContentInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Connector opens a Live session.
type Connector func(ctx context.Context, model string, config *genai.LiveConnectConfig) (LiveSession, error)

// GenAIConnector connects through the official SDK client.
func GenAIConnector(client *genai.Client) Connector {
	return func(ctx context.Context, model string, config *genai.LiveConnectConfig) (LiveSession, error) {
		session, err := client.Live.Connect(ctx, model, config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Live API: %w", err)
		}
		return session, nil
	}
}

// NewClient creates a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

type outbound struct {
	kind string
	size int
	send func(LiveSession) error
}

// Transport holds at most one Live session. Open returns before the
// connection completes; sends made before then are queued and flushed in
// order once it does.
type Transport struct {
	connect Connector
	logger  *slog.Logger
	metrics *metrics.Metrics

	events chan Event
	outbox chan outbound
	ready  chan struct{}
	done   chan struct{}

	mu      sync.RWMutex
	session LiveSession
	started bool
	closed  bool
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics records outbound audio counters.
func WithMetrics(m *metrics.Metrics) TransportOption {
	return func(t *Transport) { t.metrics = m }
}

// NewTransport creates an unopened transport.
func NewTransport(connect Connector, opts ...TransportOption) *Transport {
	t := &Transport{
		connect: connect,
		logger:  logger,
		events:  make(chan Event, eventsSize),
		outbox:  make(chan outbound, outboxSize),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open starts connecting in the background. Connection failures arrive as an
// Error event.
func (t *Transport) Open(ctx context.Context, config SessionConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyOpen
	}
	t.started = true

	go t.run(ctx, config)
	return nil
}

// Events delivers inbound events in receipt order. The channel is closed
// when the session ends or the transport is closed.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Ready is closed once the session is connected.
func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

// Done is closed by Close.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) run(ctx context.Context, config SessionConfig) {
	defer close(t.events)

	model := config.model()
	session, err := t.connect(ctx, model, config.liveConfig())
	if err != nil {
		t.emit(Error{Err: err})
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = session.Close()
		return
	}
	t.session = session
	t.mu.Unlock()

	close(t.ready)
	t.logger.Info("connected to Gemini Live", "model", model, "modality", string(config.Modality))

	go t.writePump(session)
	t.receive(session)
}

// writePump handles all outgoing messages in a single goroutine
func (t *Transport) writePump(session LiveSession) {
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.outbox:
			if err := msg.send(session); err != nil {
				if t.IsClosed() {
					return
				}
				t.logger.Warn("failed to send to Gemini", "kind", msg.kind, "error", err)
				continue
			}
			if msg.kind == "audio" {
				t.metrics.RecordAudio("out", "sent", msg.size)
			}
		}
	}
}

func (t *Transport) receive(session LiveSession) {
	for {
		resp, err := session.Receive()
		if err != nil {
			if t.IsClosed() {
				return
			}
			if isNormalClose(err) {
				t.logger.Info("Gemini session closed", "reason", err.Error())
				t.emit(Closed{Reason: err.Error()})
			} else {
				t.logger.Error("Gemini receive error", "error", err)
				t.emit(Error{Err: err})
			}
			return
		}

		if !t.handleResponse(resp) {
			return
		}
	}
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}

// handleResponse translates one server message. Interruption is always
// emitted first. It returns false once the transport has been closed.
func (t *Transport) handleResponse(resp *genai.LiveServerMessage) bool {
	content := resp.ServerContent

	if content != nil && content.Interrupted {
		if !t.emit(Interrupted{}) {
			return false
		}
	}

	if resp.ToolCall != nil && len(resp.ToolCall.FunctionCalls) > 0 {
		batch := ToolCallBatch{Calls: make([]ToolCall, 0, len(resp.ToolCall.FunctionCalls))}
		for _, fc := range resp.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			batch.Calls = append(batch.Calls, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		t.logger.Debug("received function calls", "count", len(batch.Calls))
		if !t.emit(batch) {
			return false
		}
	}

	if resp.ToolCallCancellation != nil && len(resp.ToolCallCancellation.IDs) > 0 {
		if !t.emit(ToolCallCancelled{IDs: resp.ToolCallCancellation.IDs}) {
			return false
		}
	}

	if content != nil {
		if content.InputTranscription != nil && content.InputTranscription.Text != "" {
			if !t.emit(Transcript{Role: genai.RoleUser, Text: content.InputTranscription.Text}) {
				return false
			}
		}
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part == nil {
					continue
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					if !t.emit(AudioChunk{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}) {
						return false
					}
				}
				if part.Text != "" && !part.Thought {
					if !t.emit(Text{Text: part.Text}) {
						return false
					}
				}
			}
		}
		if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
			if !t.emit(Transcript{Role: genai.RoleModel, Text: content.OutputTranscription.Text}) {
				return false
			}
		}
		if content.TurnComplete {
			if !t.emit(TurnComplete{}) {
				return false
			}
		}
	}

	if resp.GoAway != nil {
		t.logger.Warn("Gemini will close the session soon", "time_left", resp.GoAway.TimeLeft)
	}
	return true
}

// emit blocks until the event is taken or the transport is closed.
func (t *Transport) emit(ev Event) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// SendAudio queues one chunk without blocking. When the queue is full or the
// transport is closed the chunk is dropped; nothing is retried.
func (t *Transport) SendAudio(data []byte, mimeType string) error {
	if t.IsClosed() {
		return ErrClosed
	}
	msg := outbound{
		kind: "audio",
		size: len(data),
		send: func(s LiveSession) error {
			return s.SendRealtimeInput(genai.LiveRealtimeInput{
				Audio: &genai.Blob{MIMEType: mimeType, Data: data},
			})
		},
	}
	select {
	case t.outbox <- msg:
		return nil
	default:
		t.metrics.RecordAudio("out", "dropped", len(data))
		return nil
	}
}

// SendText queues a user text message.
func (t *Transport) SendText(text string) error {
	return t.enqueue(outbound{
		kind: "text",
		send: func(s LiveSession) error {
			return s.SendRealtimeInput(genai.LiveRealtimeInput{Text: text})
		},
	})
}

// SendToolResponse queues responses, one per answered call.
func (t *Transport) SendToolResponse(responses ...ToolResponse) error {
	if len(responses) == 0 {
		return nil
	}
	frs := make([]*genai.FunctionResponse, 0, len(responses))
	for _, r := range responses {
		frs = append(frs, &genai.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: map[string]any{"result": r.Result},
		})
	}
	return t.enqueue(outbound{
		kind: "tool_response",
		send: func(s LiveSession) error {
			return s.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: frs})
		},
	})
}

func (t *Transport) enqueue(msg outbound) error {
	if t.IsClosed() {
		return ErrClosed
	}
	select {
	case t.outbox <- msg:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

// IsClosed returns whether Close has been called
func (t *Transport) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Close stops event delivery and then releases the session. It is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	session := t.session
	t.session = nil
	started := t.started
	t.mu.Unlock()

	if !started {
		close(t.events)
	}
	if session != nil {
		return session.Close()
	}
	return nil
}
