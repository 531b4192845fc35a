// Package geminitest provides a scripted Live session for tests.
package geminitest

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/room4-2/accessai/gemini"
)

type received struct {
	msg *genai.LiveServerMessage
	err error
}

// FakeSession is an in-memory gemini.LiveSession. Server messages are pushed
// by the test; everything the client sends is recorded.
type FakeSession struct {
	incoming chan received
	closed   chan struct{}
	once     sync.Once

	mu        sync.Mutex
	audio     [][]byte
	texts     []string
	responses []*genai.FunctionResponse
	config    *genai.LiveConnectConfig
	model     string
	closes    int

	// Gate, when non-nil, delays Connector until it is closed.
	Gate chan struct{}
	// ConnectErr makes Connector fail.
	ConnectErr error
}

// NewFakeSession creates an open fake session.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		incoming: make(chan received, 64),
		closed:   make(chan struct{}),
	}
}

// Connector returns a gemini.Connector that yields this session.
func (f *FakeSession) Connector() gemini.Connector {
	return func(ctx context.Context, model string, config *genai.LiveConnectConfig) (gemini.LiveSession, error) {
		if f.Gate != nil {
			select {
			case <-f.Gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if f.ConnectErr != nil {
			return nil, f.ConnectErr
		}
		f.mu.Lock()
		f.model = model
		f.config = config
		f.mu.Unlock()
		return f, nil
	}
}

// Push queues a server message for Receive.
func (f *FakeSession) Push(msg *genai.LiveServerMessage) {
	f.incoming <- received{msg: msg}
}

// Fail makes the next Receive return err.
func (f *FakeSession) Fail(err error) {
	f.incoming <- received{err: err}
}

// CloseFromServer ends the session with a normal websocket close.
func (f *FakeSession) CloseFromServer() {
	f.Fail(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"})
}

func (f *FakeSession) SendRealtimeInput(input genai.LiveRealtimeInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if input.Audio != nil {
		f.audio = append(f.audio, input.Audio.Data)
	}
	if input.Text != "" {
		f.texts = append(f.texts, input.Text)
	}
	return nil
}

func (f *FakeSession) SendClientContent(input genai.LiveClientContentInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, turn := range input.Turns {
		for _, part := range turn.Parts {
			if part.Text != "" {
				f.texts = append(f.texts, part.Text)
			}
		}
	}
	return nil
}

func (f *FakeSession) SendToolResponse(input genai.LiveToolResponseInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, input.FunctionResponses...)
	return nil
}

func (f *FakeSession) Receive() (*genai.LiveServerMessage, error) {
	select {
	case r := <-f.incoming:
		return r.msg, r.err
	case <-f.closed:
		return nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: "closed"}
	}
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
	return nil
}

// Audio returns every audio payload sent so far.
func (f *FakeSession) Audio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.audio...)
}

// Texts returns every text message sent so far.
func (f *FakeSession) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// Responses returns every function response sent so far.
func (f *FakeSession) Responses() []*genai.FunctionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*genai.FunctionResponse(nil), f.responses...)
}

// Config is the connect config the session was opened with.
func (f *FakeSession) Config() *genai.LiveConnectConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// Model is the model the session was opened with.
func (f *FakeSession) Model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

// Closed reports whether Close was called.
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes > 0
}

// AudioMessage is a model turn carrying one PCM chunk.
func AudioMessage(data []byte) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: data}}},
			},
		},
	}
}

// ToolCallMessage carries the given calls in one batch.
func ToolCallMessage(calls ...*genai.FunctionCall) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{FunctionCalls: calls}}
}

// InterruptedMessage reports that the user barged in.
func InterruptedMessage() *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{Interrupted: true}}
}

// TurnCompleteMessage ends the model turn.
func TurnCompleteMessage() *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{TurnComplete: true}}
}
