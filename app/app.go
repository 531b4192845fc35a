// Package app assembles the conversation engine from configuration. Both the
// headless service and the terminal companion build through here.
package app

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/room4-2/accessai/audio"
	"github.com/room4-2/accessai/audio/device"
	"github.com/room4-2/accessai/config"
	"github.com/room4-2/accessai/functions"
	"github.com/room4-2/accessai/gemini"
	"github.com/room4-2/accessai/metrics"
	"github.com/room4-2/accessai/session"
)

var errNoDevices = errors.New("audio devices unavailable")

// App owns the process-wide resources behind one Conversation.
type App struct {
	Config       *config.Config
	Conversation *session.Conversation
	Metrics      *metrics.Metrics
	Redis        *redis.Client
	Devices      *device.Devices

	cancel context.CancelFunc
}

// Options customises New.
type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	OnTranscript func(role, text string)
}

// New connects to Gemini, opens audio hardware and Redis, and builds an idle
// conversation. Missing audio hardware or Redis are logged and tolerated.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a := &App{Config: cfg, Metrics: opts.Metrics, cancel: cancel}

	mixer := audio.NewMixer(audio.OutputSampleRate)
	devices, err := device.Open(cfg.AudioBackend, mixer)
	if err != nil {
		log.Printf("⚠️  Audio devices unavailable (%v), playback is silent", err)
		go clockSilently(runCtx, mixer)
	}
	a.Devices = devices

	openInput := audio.OpenInputFunc(func(int) (audio.InputDevice, error) {
		return nil, errNoDevices
	})
	if devices != nil {
		openInput = devices.OpenInput
	}

	a.Redis = session.ConnectRedis(cfg)
	if a.Redis == nil {
		log.Printf("⚠️  Redis unavailable at %s, map data is kept in memory", cfg.RedisURL)
	}

	executor := functions.NewGenAIExecutor(client.Models, cfg.ToolModel, cfg.HomeLatitude, cfg.HomeLongitude)

	a.Conversation = session.NewConversation(session.Config{
		Session: gemini.SessionConfig{
			Model:      cfg.LiveModel,
			Persona:    session.DefaultSystemPrompt,
			Modality:   gemini.Modality(cfg.ResponseModality),
			Voice:      cfg.VoiceName,
			Tools:      functions.Declarations(),
			Transcribe: true,
		},
		Connector: gemini.GenAIConnector(client),
		Executor:  executor,
		Cache:     session.NewMapCache(a.Redis, cfg.SessionTimeout),
		OpenInput: openInput,
		BlockSize: cfg.CaptureBlockSize,
		Output:    mixer,
	}, session.Options{
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		PlacesDelay:  cfg.PlacesDelay,
		OnTranscript: opts.OnTranscript,
	})

	return a, nil
}

// Close stops the conversation and releases hardware and Redis.
func (a *App) Close() {
	if err := a.Conversation.Stop(); err != nil {
		log.Printf("Conversation stop error: %v", err)
	}
	a.cancel()
	if a.Devices != nil {
		a.Devices.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("Redis close error: %v", err)
		}
	}
}

// clockSilently pulls from the mixer in real time so scheduled speech still
// ends and the state machine leaves SPEAKING without a speaker.
func clockSilently(ctx context.Context, mixer *audio.Mixer) {
	const period = 20 * time.Millisecond
	buf := make([]byte, mixer.SampleRate()*2*int(period/time.Millisecond)/1000)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mixer.Render(buf)
		}
	}
}
