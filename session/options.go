package session

import (
	"log/slog"
	"os"
	"time"

	"github.com/room4-2/accessai/metrics"
)

// Options carries the ambient dependencies shared by the coordinator and the
// conversation. The zero value is usable.
type Options struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	PlacesDelay time.Duration
	// OnTranscript, when set, receives model text and transcriptions.
	OnTranscript func(role, text string)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger
}

// NewLogger returns the package's OpenTelemetry logger, or a plain stderr
// text logger when stderr is true.
func NewLogger(stderr bool) *slog.Logger {
	if !stderr {
		return logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
