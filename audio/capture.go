package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrCaptureRunning is returned by Start on a capture that already holds a device.
var ErrCaptureRunning = errors.New("capture already running")

// AcquisitionError means the microphone could not be opened or started.
// It never ends the conversation; the session continues without outbound audio.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// InputDevice is an opened microphone delivering mono float samples at the
// rate it was opened with. Start's callback runs on the device thread.
type InputDevice interface {
	Start(onSamples func(samples []float32)) error
	Stop() error
	Close() error
}

// OpenInputFunc opens the microphone at sampleRate.
type OpenInputFunc func(sampleRate int) (InputDevice, error)

// Capture owns one microphone for the lifetime of a conversation. It frames
// samples into fixed blocks, encodes each block and hands it to the sink
// without waiting on it.
type Capture struct {
	open      OpenInputFunc
	blockSize int

	mu     sync.Mutex
	device InputDevice

	sink   atomic.Pointer[func(Chunk)]
	paused atomic.Bool

	framerMu sync.Mutex
	framer   *Framer

	frames atomic.Int64
}

// NewCapture creates a capture that opens its device through open.
func NewCapture(open OpenInputFunc, blockSize int) *Capture {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Capture{
		open:      open,
		blockSize: blockSize,
		framer:    NewFramer(blockSize),
	}
}

// Start acquires the microphone and begins delivering chunks to sink. Any
// failure is an *AcquisitionError.
func (c *Capture) Start(sink func(Chunk)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return ErrCaptureRunning
	}
	if c.open == nil {
		return &AcquisitionError{Err: errors.New("no input device configured")}
	}

	device, err := c.open(InputSampleRate)
	if err != nil {
		return &AcquisitionError{Err: err}
	}

	c.sink.Store(&sink)
	if err := device.Start(c.onSamples); err != nil {
		c.sink.Store(nil)
		_ = device.Close()
		return &AcquisitionError{Err: err}
	}

	c.device = device
	logger.Debug("microphone capture started", "block_size", c.blockSize)
	return nil
}

func (c *Capture) onSamples(samples []float32) {
	sink := c.sink.Load()
	if sink == nil || c.paused.Load() {
		return
	}

	c.framerMu.Lock()
	defer c.framerMu.Unlock()
	c.framer.Write(samples, func(frame []float32) {
		if chunk, ok := Encode(frame); ok {
			c.frames.Add(1)
			(*sink)(chunk)
		}
	})
}

// Pause stops delivering frames while keeping the device open.
func (c *Capture) Pause() {
	c.paused.Store(true)
}

// Resume restarts delivery. Any partial frame from before the pause is dropped.
func (c *Capture) Resume() {
	c.framerMu.Lock()
	c.framer.Reset()
	c.framerMu.Unlock()
	c.paused.Store(false)
}

// Paused reports whether delivery is currently paused.
func (c *Capture) Paused() bool {
	return c.paused.Load()
}

// Running reports whether a device is held.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}

// FramesSent is the number of chunks handed to the sink so far.
func (c *Capture) FramesSent() int64 {
	return c.frames.Load()
}

// Stop detaches the sink, stops the device and then closes it, so no frame
// can be delivered once Stop has begun. Calling Stop again is a no-op.
func (c *Capture) Stop() error {
	c.sink.Store(nil)

	c.mu.Lock()
	device := c.device
	c.device = nil
	c.mu.Unlock()

	if device == nil {
		return nil
	}

	stopErr := device.Stop()
	closeErr := device.Close()

	c.framerMu.Lock()
	c.framer.Reset()
	c.framerMu.Unlock()

	logger.Debug("microphone capture stopped", "frames", c.frames.Load())
	return errors.Join(stopErr, closeErr)
}
