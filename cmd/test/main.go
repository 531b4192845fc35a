package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/accessai/messages"
)

// serverMessage mirrors messages.ServerMessage with a deferred payload.
type serverMessage struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "UI bridge websocket URL")
	text := flag.String("text", "", "typed turn to send after starting")
	start := flag.Bool("start", true, "start a conversation on connect")
	duration := flag.Duration("duration", 30*time.Second, "how long to watch before stopping")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()
	log.Printf("🔌 Connected to %s", *addr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			printMessage(data)
		}
	}()

	if *start {
		send(conn, messages.TypeControl, messages.ControlPayload{Action: messages.ActionStart})
	}
	if *text != "" {
		// Give the session a moment to connect before the typed turn.
		time.Sleep(2 * time.Second)
		send(conn, messages.TypeText, messages.TextPayload{Text: *text})
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
		return
	case <-interrupt:
	case <-time.After(*duration):
	}

	if *start {
		send(conn, messages.TypeControl, messages.ControlPayload{Action: messages.ActionStop})
		time.Sleep(500 * time.Millisecond)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func send(conn *websocket.Conn, msgType string, payload any) {
	data, err := sonic.Marshal(outbound{Type: msgType, Payload: payload})
	if err != nil {
		log.Fatalf("Failed to encode %s message: %v", msgType, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Fatalf("Failed to send %s message: %v", msgType, err)
	}
}

func printMessage(data []byte) {
	var msg serverMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		log.Printf("⚠️  Undecodable message: %s", data)
		return
	}

	switch msg.Type {
	case messages.TypeState:
		var p messages.StatePayload
		_ = sonic.Unmarshal(msg.Payload, &p)
		if p.SideData != nil {
			side, _ := sonic.MarshalString(p.SideData)
			log.Printf("🔄 %s %s", p.State, side)
		} else {
			log.Printf("🔄 %s", p.State)
		}
	case messages.TypeTranscript:
		var p messages.TranscriptPayload
		_ = sonic.Unmarshal(msg.Payload, &p)
		log.Printf("📝 [%s] %s", p.Role, p.Text)
	case messages.TypeStatus:
		var p messages.StatusPayload
		_ = sonic.Unmarshal(msg.Payload, &p)
		log.Printf("ℹ️  %s", formatStatus(p))
	case messages.TypeError:
		var p messages.ErrorPayload
		_ = sonic.Unmarshal(msg.Payload, &p)
		log.Printf("❌ %s: %s", p.Code, p.Message)
	default:
		log.Printf("📨 %s", data)
	}
}

func formatStatus(p messages.StatusPayload) string {
	if p.Message == "" {
		return p.Status
	}
	return fmt.Sprintf("%s (%s)", p.Status, p.Message)
}
