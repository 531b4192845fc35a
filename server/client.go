package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/accessai/audio"
	"github.com/room4-2/accessai/messages"
	"github.com/room4-2/accessai/session"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	maxMessageSize  = 64 * 1024
)

// Controller is the conversation a UI client drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	SendText(text string) error
	Dismiss() bool
	OpenLiveMap() bool
	ID() string
	Snapshot() (session.State, *session.SideData)
}

// Client represents a single UI connection
type Client struct {
	ID         string
	Conn       *websocket.Conn
	CreatedAt  time.Time
	controller Controller
	keepAlive  time.Duration

	// Use channels for non-blocking writes
	writeChan chan any

	mu           sync.RWMutex
	lastActivity time.Time
	closed       bool
	CloseChan    chan struct{}
}

// NewClient wraps an upgraded connection
func NewClient(id string, conn *websocket.Conn, controller Controller, keepAlive time.Duration) *Client {
	conn.SetReadLimit(maxMessageSize)

	return &Client{
		ID:           id,
		Conn:         conn,
		CreatedAt:    time.Now(),
		controller:   controller,
		keepAlive:    keepAlive,
		writeChan:    make(chan any, writeBufferSize),
		lastActivity: time.Now(),
		CloseChan:    make(chan struct{}),
	}
}

// Start begins the write pump and the read loop. ctx bounds any
// conversation the client starts.
func (c *Client) Start(ctx context.Context) {
	go c.writePump()
	c.queueMessage(messages.NewStatusMessage(c.ID, "connected", "UI bridge connected"))
	if c.controller != nil {
		state, side := c.controller.Snapshot()
		var sideData any
		if side != nil {
			sideData = side
		}
		c.queueMessage(messages.NewStateMessage(state.String(), c.controller.ID(), sideData))
	}
	go c.handleClientMessages(ctx)
}

// writePump handles all outgoing messages in a single goroutine
func (c *Client) writePump() {
	var ping <-chan time.Time
	if c.keepAlive > 0 {
		ticker := time.NewTicker(c.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	defer func() {
		// Send close message before exiting
		c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		c.Conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-c.CloseChan:
			return
		case <-ping:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-c.writeChan:
			if err := c.write(msg); err != nil {
				return
			}

			n := len(c.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg := <-c.writeChan:
					if err := c.write(msg); err != nil {
						return
					}
				default:
					// No more messages, continue outer loop
				}
			}
		}
	}
}

func (c *Client) write(msg any) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("⚠️ [%s] Failed to encode message: %v", c.ID[:8], err)
		return nil
	}
	c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// queueMessage adds a message to the write queue (non-blocking)
func (c *Client) queueMessage(msg any) {
	if c.IsClosed() {
		return
	}
	select {
	case c.writeChan <- msg:
	default:
		// Queue full, drop message (shouldn't happen with proper sizing)
		log.Printf("⚠️ [%s] Write queue full, dropping message", c.ID[:8])
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActive is when the client last sent anything
func (c *Client) LastActive() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// RemoteAddr is the peer address
func (c *Client) RemoteAddr() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}

// Close terminates the client connection. It does not stop the conversation.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Signal close (for other goroutines waiting on this)
	close(c.CloseChan)

	// Give the write pump a moment to send the close frame
	time.AfterFunc(100*time.Millisecond, func() {
		c.Conn.Close()
	})
	return nil
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) handleClientMessages(ctx context.Context) {
	defer c.Close()

	if c.keepAlive > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(2 * c.keepAlive))
		c.Conn.SetPongHandler(func(string) error {
			c.Conn.SetReadDeadline(time.Now().Add(2 * c.keepAlive))
			return nil
		})
	}

	for {
		select {
		case <-c.CloseChan:
			return
		default:
			messageType, message, err := c.Conn.ReadMessage()
			if err != nil {
				if !c.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("❌ [%s] WebSocket read error: %v", c.ID[:8], err)
				}
				return
			}
			c.touch()
			if c.keepAlive > 0 {
				c.Conn.SetReadDeadline(time.Now().Add(2 * c.keepAlive))
			}

			if messageType != websocket.TextMessage {
				c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeInvalidMessage, "Binary messages are not supported"))
				continue
			}

			var clientMsg messages.ClientMessage
			if err := sonic.Unmarshal(message, &clientMsg); err != nil {
				c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
				continue
			}

			c.processClientMessage(ctx, &clientMsg)
		}
	}
}

func (c *Client) processClientMessage(ctx context.Context, msg *messages.ClientMessage) {
	switch msg.Type {
	case messages.TypeControl:
		var payload messages.ControlPayload
		if err := sonic.Unmarshal(msg.Payload, &payload); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		c.handleControlMessage(ctx, &payload)

	case messages.TypeText:
		var payload messages.TextPayload
		if err := sonic.Unmarshal(msg.Payload, &payload); err != nil || payload.Text == "" {
			c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeInvalidMessage, "Invalid text payload"))
			return
		}
		c.handleText(payload.Text)

	default:
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (c *Client) handleControlMessage(ctx context.Context, payload *messages.ControlPayload) {
	if payload.Action == messages.ActionPing {
		c.queueMessage(messages.NewStatusMessage(c.ID, "pong", ""))
		return
	}
	if c.controller == nil {
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeNotRunning, "No conversation engine attached"))
		return
	}

	switch payload.Action {
	case messages.ActionStart:
		c.handleStart(ctx)
	case messages.ActionStop:
		if err := c.controller.Stop(); err != nil {
			log.Printf("⚠️ [%s] Stop reported: %v", c.ID[:8], err)
		}
	case messages.ActionDismiss:
		if !c.controller.Dismiss() {
			c.queueMessage(messages.NewStatusMessage(c.ID, "ignored", "Nothing to dismiss"))
		}
	case messages.ActionOpenLiveMap:
		if !c.controller.OpenLiveMap() {
			c.queueMessage(messages.NewStatusMessage(c.ID, "ignored", "No places list is showing"))
		}
	default:
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

func (c *Client) handleStart(ctx context.Context) {
	err := c.controller.Start(ctx)

	var acqErr *audio.AcquisitionError
	switch {
	case err == nil:
		log.Printf("🎙️ [%s] Conversation started: %s", c.ID[:8], c.controller.ID())
	case errors.Is(err, session.ErrAlreadyRunning):
		c.queueMessage(messages.NewStatusMessage(c.ID, "running", "Conversation already running"))
	case errors.As(err, &acqErr):
		log.Printf("⚠️ [%s] Microphone unavailable: %v", c.ID[:8], err)
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeMicrophone, err.Error()))
	default:
		log.Printf("❌ [%s] Failed to start conversation: %v", c.ID[:8], err)
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeSessionFailed, err.Error()))
	}
}

func (c *Client) handleText(text string) {
	if c.controller == nil {
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeNotRunning, "No conversation engine attached"))
		return
	}
	err := c.controller.SendText(text)
	switch {
	case err == nil:
		c.queueMessage(messages.NewTranscriptMessage("user", text))
	case errors.Is(err, session.ErrNotRunning):
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeNotRunning, "Start a conversation first"))
	default:
		c.queueMessage(messages.NewErrorMessage(c.ID, messages.ErrCodeGeminiError, err.Error()))
	}
}
