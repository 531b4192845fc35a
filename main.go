package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/accessai/app"
	"github.com/room4-2/accessai/config"
	"github.com/room4-2/accessai/metrics"
	"github.com/room4-2/accessai/server"
	"github.com/room4-2/accessai/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	m := metrics.NewMetrics("")
	logger := session.NewLogger(cfg.LogStderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hub first so transcripts have somewhere to go
	var hub *server.Hub
	engine, err := app.New(ctx, cfg, app.Options{
		Logger:  logger,
		Metrics: m,
		OnTranscript: func(role, text string) {
			hub.Transcript(role, text)
		},
	})
	if err != nil {
		log.Fatalf("Failed to build conversation engine: %v", err)
	}
	hub = server.NewHub(cfg, engine.Redis, m)
	engine.Conversation.Machine().Subscribe(hub)

	go hub.StartCleanupRoutine(ctx)

	srv := server.NewServerWebsocket(cfg, hub, engine.Conversation, m)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		engine.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🎙️  Access.ai ready (model %s, voice %s)", cfg.LiveModel, cfg.VoiceName)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
