package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/room4-2/accessai/audio"
)

// OtoSpeaker plays an audio.Mixer through oto. oto allows a single context
// per process, so only one OtoSpeaker may exist.
type OtoSpeaker struct {
	mu     sync.Mutex
	otoCtx *oto.Context
	player *oto.Player
	mixer  *audio.Mixer
}

// NewOtoSpeaker creates the oto context for the mixer's format.
func NewOtoSpeaker(mixer *audio.Mixer) (*OtoSpeaker, error) {
	op := &oto.NewContextOptions{
		SampleRate:   mixer.SampleRate(),
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   40 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	return &OtoSpeaker{otoCtx: ctx, mixer: mixer}, nil
}

// Start begins pulling from the mixer.
func (s *OtoSpeaker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.otoCtx == nil {
		return fmt.Errorf("output not initialized")
	}
	if s.player != nil {
		return nil
	}
	s.player = s.otoCtx.NewPlayer(s.mixer)
	s.player.SetBufferSize(s.mixer.SampleRate() / 25 * 2) // 40ms of S16 mono
	s.player.Play()
	logger.Info("audio output initialized", "backend", "oto", "sample_rate", s.mixer.SampleRate())
	return nil
}

func (s *OtoSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		_ = s.player.Close()
		s.player = nil
	}
	if s.otoCtx != nil {
		_ = s.otoCtx.Suspend()
	}
	return nil
}
