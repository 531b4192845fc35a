package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/gemini"
	"github.com/room4-2/accessai/session"
)

func main() {
	text := flag.String("text", "Is sushi safe during pregnancy? Answer in one sentence.", "text to send")
	model := flag.String("model", gemini.DefaultModel, "live model")
	audio := flag.Bool("audio", false, "request audio responses instead of text")
	tools := flag.Bool("tools", false, "declare the Access.ai tools")
	timeout := flag.Duration("timeout", 20*time.Second, "how long to wait for the turn")
	flag.Parse()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	cfg := gemini.SessionConfig{
		Model:      *model,
		Persona:    session.DefaultSystemPrompt,
		Modality:   gemini.ModalityText,
		Transcribe: *audio,
	}
	if *audio {
		cfg.Modality = gemini.ModalityAudio
	}
	if *tools {
		cfg.Tools = functions.Declarations()
	}

	transport := gemini.NewTransport(gemini.GenAIConnector(client))
	defer transport.Close()

	if err := transport.Open(ctx, cfg); err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	select {
	case <-transport.Ready():
		log.Printf("✅ Connected to %s", cfg.Model)
	case ev := <-transport.Events():
		log.Fatalf("❌ Session failed before ready: %#v", ev)
	case <-ctx.Done():
		log.Fatal("❌ Timed out connecting")
	}

	if err := transport.SendText(*text); err != nil {
		log.Fatalf("Failed to send text: %v", err)
	}
	log.Printf("📤 Sent: %s", *text)

	var audioBytes int
	for {
		select {
		case <-ctx.Done():
			log.Println("⏱️  Timed out waiting for turn")
			return
		case ev, ok := <-transport.Events():
			if !ok {
				log.Println("Session closed")
				return
			}
			switch e := ev.(type) {
			case gemini.AudioChunk:
				audioBytes += len(e.Data)
			case gemini.Text:
				log.Printf("💬 %s", e.Text)
			case gemini.Transcript:
				log.Printf("📝 [%s] %s", e.Role, e.Text)
			case gemini.ToolCallBatch:
				for _, call := range e.Calls {
					log.Printf("🔧 Tool call %s(%v)", call.Name, call.Args)
				}
				answerWithFallback(transport, e)
			case gemini.Interrupted:
				log.Println("✋ Interrupted")
			case gemini.TurnComplete:
				if audioBytes > 0 {
					log.Printf("🔊 Received %d bytes of audio", audioBytes)
				}
				log.Println("✅ Turn complete")
				return
			case gemini.Closed:
				log.Printf("Session closed: %s", e.Reason)
				return
			case gemini.Error:
				log.Fatalf("❌ Error: %v", e.Err)
			}
		}
	}
}

// answerWithFallback keeps the probe moving when the model calls a tool.
func answerWithFallback(transport *gemini.Transport, batch gemini.ToolCallBatch) {
	responses := make([]gemini.ToolResponse, 0, len(batch.Calls))
	for _, call := range batch.Calls {
		responses = append(responses, gemini.ToolResponse{ID: call.ID, Name: call.Name, Result: functions.FallbackResult})
	}
	if err := transport.SendToolResponse(responses...); err != nil {
		log.Printf("Failed to send tool responses: %v", err)
	}
}
