// Package audio converts between normalized float samples and the PCM16
// wire encoding used by the Live session, frames microphone input, and
// schedules received speech for gapless playback.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the rate of microphone frames sent upstream.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of synthesized speech received downstream.
	OutputSampleRate = 24000
	// InputMIMEType tags every outbound chunk.
	InputMIMEType = "audio/pcm;rate=16000"
	// DefaultBlockSize is the number of samples per outbound frame.
	DefaultBlockSize = 4096

	bytesPerSample = 2
)

// Chunk is the encoded wire form of one captured frame.
type Chunk struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the chunk payload as standard base64.
func (c Chunk) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

// Buffer is a decoded, playable block of mono samples.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns len(Samples) / SampleRate seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// DurationTime is Duration as a time.Duration.
func (b *Buffer) DurationTime() time.Duration {
	return time.Duration(b.Duration() * float64(time.Second))
}

// DecodeError reports inbound audio whose byte length is not a whole number
// of 16-bit samples.
type DecodeError struct {
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio: %d bytes is not a multiple of %d", e.Length, bytesPerSample)
}

// Encode converts a frame to little-endian PCM16. Samples outside [-1, 1]
// are clamped. An empty frame yields ok == false and nothing to send.
func Encode(frame []float32) (chunk Chunk, ok bool) {
	if len(frame) == 0 {
		return Chunk{}, false
	}
	data := make([]byte, len(frame)*bytesPerSample)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(data[i*bytesPerSample:], uint16(floatToPCM16(s)))
	}
	return Chunk{Data: data, MIMEType: InputMIMEType}, true
}

func floatToPCM16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Decode converts little-endian PCM16 at OutputSampleRate into a Buffer.
func Decode(data []byte) (*Buffer, error) {
	if len(data)%bytesPerSample != 0 {
		return nil, &DecodeError{Length: len(data)}
	}
	samples := make([]float32, len(data)/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
		samples[i] = float32(v) / 32768
	}
	return &Buffer{Samples: samples, SampleRate: OutputSampleRate}, nil
}

// DecodeBase64 decodes a base64 payload and then the PCM16 inside it.
func DecodeBase64(encoded string) (*Buffer, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return Decode(data)
}
