package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Voices accepted by the Live API prebuilt voice config.
var Voices = []string{"Puck", "Charon", "Kore", "Fenrir", "Aoede", "Leda", "Orus", "Zephyr"}

// ConfigurationError reports a missing or unusable required setting. It is
// returned before any connection is attempted.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Reason)
}

// Config holds all runtime configuration
type Config struct {
	Port            int
	RedisURL        string
	RedisPassword   string
	MaxClients      int // Maximum concurrent UI websocket clients
	SessionTimeout  time.Duration
	GeminiAPIKey    string
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration

	LiveModel        string
	ToolModel        string
	VoiceName        string
	ResponseModality string // "audio" or "text"

	AudioBackend     string // "malgo" or "oto"
	CaptureBlockSize int    // samples per outbound frame
	PlacesDelay      time.Duration

	HomeLatitude  float64
	HomeLongitude float64

	LogStderr bool
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:             8080,
		RedisURL:         "localhost:6379",
		MaxClients:       10,
		SessionTimeout:   30 * time.Minute,
		AllowedOrigins:   []string{"*"},
		KeepAlivePeriod:  30 * time.Second,
		LiveModel:        "gemini-2.5-flash-native-audio-preview-09-2025",
		ToolModel:        "gemini-2.5-flash",
		VoiceName:        "Zephyr",
		ResponseModality: "audio",
		AudioBackend:     "malgo",
		CaptureBlockSize: 4096,
		PlacesDelay:      time.Second,
		HomeLatitude:     51.5074,
		HomeLongitude:    -0.1278,
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, &ConfigurationError{Key: "GEMINI_API_KEY", Reason: "environment variable is required"}
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_CLIENTS
	if maxClients := os.Getenv("MAX_CLIENTS"); maxClients != "" {
		m, err := strconv.Atoi(maxClients)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_CLIENTS: %w", err)
		}
		config.MaxClients = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	if model := os.Getenv("GEMINI_LIVE_MODEL"); model != "" {
		config.LiveModel = model
	}
	if model := os.Getenv("GEMINI_TOOL_MODEL"); model != "" {
		config.ToolModel = model
	}

	// Optional: VOICE_NAME (one of Voices)
	if voice := os.Getenv("VOICE_NAME"); voice != "" {
		if !validVoice(voice) {
			return nil, fmt.Errorf("invalid VOICE_NAME: %q is not one of %s", voice, strings.Join(Voices, ", "))
		}
		config.VoiceName = voice
	}

	// Optional: RESPONSE_MODALITY ("audio" or "text")
	if modality := os.Getenv("RESPONSE_MODALITY"); modality != "" {
		switch strings.ToLower(modality) {
		case "audio", "text":
			config.ResponseModality = strings.ToLower(modality)
		default:
			return nil, fmt.Errorf("invalid RESPONSE_MODALITY: must be 'audio' or 'text'")
		}
	}

	// Optional: AUDIO_BACKEND ("malgo" or "oto")
	if backend := os.Getenv("AUDIO_BACKEND"); backend != "" {
		switch backend {
		case "malgo", "oto":
			config.AudioBackend = backend
		default:
			return nil, fmt.Errorf("invalid AUDIO_BACKEND: must be 'malgo' or 'oto'")
		}
	}

	// Optional: CAPTURE_BLOCK_SIZE (in samples)
	if block := os.Getenv("CAPTURE_BLOCK_SIZE"); block != "" {
		b, err := strconv.Atoi(block)
		if err != nil {
			return nil, fmt.Errorf("invalid CAPTURE_BLOCK_SIZE: %w", err)
		}
		if b <= 0 {
			return nil, fmt.Errorf("invalid CAPTURE_BLOCK_SIZE: must be positive")
		}
		config.CaptureBlockSize = b
	}

	// Optional: PLACES_OVERLAY_DELAY (in milliseconds)
	if delay := os.Getenv("PLACES_OVERLAY_DELAY"); delay != "" {
		d, err := strconv.Atoi(delay)
		if err != nil {
			return nil, fmt.Errorf("invalid PLACES_OVERLAY_DELAY: %w", err)
		}
		config.PlacesDelay = time.Duration(d) * time.Millisecond
	}

	if lat := os.Getenv("HOME_LAT"); lat != "" {
		v, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HOME_LAT: %w", err)
		}
		config.HomeLatitude = v
	}
	if lng := os.Getenv("HOME_LNG"); lng != "" {
		v, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HOME_LNG: %w", err)
		}
		config.HomeLongitude = v
	}

	if stderr := os.Getenv("LOG_STDERR"); stderr != "" {
		b, err := strconv.ParseBool(stderr)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_STDERR: %w", err)
		}
		config.LogStderr = b
	}

	return config, nil
}

func validVoice(name string) bool {
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}
