// Package device binds the audio package to real sound hardware through
// miniaudio (malgo) or oto.
package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/room4-2/accessai/audio"
)

// Context owns the miniaudio context shared by capture and playback devices.
type Context struct {
	audioContext *malgo.AllocatedContext
}

// NewContext initializes miniaudio.
func NewContext() (*Context, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}
	return &Context{audioContext: audioCtx}, nil
}

// OpenInput opens the default microphone as mono float32 at sampleRate. It
// satisfies audio.OpenInputFunc.
func (c *Context) OpenInput(sampleRate int) (audio.InputDevice, error) {
	in := &captureDevice{}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(sampleRate)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatF32)

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			in.deliver(pInput[:n])
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	in.device = device
	return in, nil
}

// Close releases the miniaudio context.
func (c *Context) Close() {
	if c.audioContext == nil {
		return
	}
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
	c.audioContext = nil
}

type captureDevice struct {
	device *malgo.Device

	mu        sync.Mutex
	onSamples func([]float32)
	scratch   []float32
}

func (d *captureDevice) deliver(raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.onSamples == nil {
		return
	}

	n := len(raw) / 4
	if cap(d.scratch) < n {
		d.scratch = make([]float32, n)
	}
	samples := d.scratch[:n]
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	d.onSamples(samples)
}

func (d *captureDevice) Start(onSamples func([]float32)) error {
	d.mu.Lock()
	d.onSamples = onSamples
	d.mu.Unlock()

	if d.device.IsStarted() {
		return nil
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (d *captureDevice) Stop() error {
	d.mu.Lock()
	d.onSamples = nil
	d.mu.Unlock()

	if !d.device.IsStarted() {
		return nil
	}
	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (d *captureDevice) Close() error {
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	return nil
}

// MalgoSpeaker renders an audio.Mixer through a miniaudio playback device.
type MalgoSpeaker struct {
	mu     sync.Mutex
	device *malgo.Device
}

// OpenSpeaker opens the default output device as mono S16 at the mixer's rate.
func (c *Context) OpenSpeaker(mixer *audio.Mixer) (*MalgoSpeaker, error) {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(mixer.SampleRate())
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(mixer.SampleRate() / 50) // 20ms
	config.Periods = 3

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16)

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pOutput) < n {
				n = len(pOutput)
			}
			mixer.Render(pOutput[:n])
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return &MalgoSpeaker{device: device}, nil
}

func (s *MalgoSpeaker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (s *MalgoSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}
	if s.device.IsStarted() {
		_ = s.device.Stop()
	}
	s.device.Uninit()
	s.device = nil
	return nil
}
