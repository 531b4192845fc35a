package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Mixer is a software timeline implementing Output. Its clock is the number
// of frames rendered so far, so it advances exactly as fast as the device
// pulling from it. Render and Read produce mono S16LE.
type Mixer struct {
	rate int

	mu       sync.Mutex
	rendered int64
	voices   []*voice
}

type voice struct {
	m       *Mixer
	samples []float32
	start   int64
	onEnded func()
}

func (v *voice) end() int64 {
	return v.start + int64(len(v.samples))
}

// Stop removes the voice from the timeline.
func (v *voice) Stop() {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for i, other := range v.m.voices {
		if other == v {
			v.m.voices = append(v.m.voices[:i], v.m.voices[i+1:]...)
			return
		}
	}
}

// NewMixer creates a mixer running at sampleRate.
func NewMixer(sampleRate int) *Mixer {
	if sampleRate <= 0 {
		sampleRate = OutputSampleRate
	}
	return &Mixer{rate: sampleRate}
}

// SampleRate of the rendered stream.
func (m *Mixer) SampleRate() int {
	return m.rate
}

// CurrentTime in seconds since the first rendered frame.
func (m *Mixer) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.rendered) / float64(m.rate)
}

// Schedule places buf on the timeline at the given time.
func (m *Mixer) Schedule(buf *Buffer, at float64, onEnded func()) Source {
	samples := buf.Samples
	if buf.SampleRate != m.rate && buf.SampleRate > 0 {
		samples = resample(samples, buf.SampleRate, m.rate)
	}

	v := &voice{
		m:       m,
		samples: samples,
		start:   int64(math.Round(at * float64(m.rate))),
		onEnded: onEnded,
	}

	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()
	return v
}

// Render fills out with the next len(out)/2 frames and advances the clock.
func (m *Mixer) Render(out []byte) {
	frames := int64(len(out) / bytesPerSample)

	m.mu.Lock()
	from := m.rendered
	to := from + frames

	var finished []func()
	remaining := m.voices[:0]
	for i := int64(0); i < frames; i++ {
		var sum float32
		pos := from + i
		for _, v := range m.voices {
			if pos >= v.start && pos < v.end() {
				sum += v.samples[pos-v.start]
			}
		}
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(floatToPCM16(sum)))
	}
	for _, v := range m.voices {
		if v.end() <= to {
			if v.onEnded != nil {
				finished = append(finished, v.onEnded)
			}
			continue
		}
		remaining = append(remaining, v)
	}
	m.voices = remaining
	m.rendered = to
	m.mu.Unlock()

	for _, cb := range finished {
		go cb()
	}
}

// Read renders into p, making the mixer an endless io.Reader.
func (m *Mixer) Read(p []byte) (int, error) {
	n := len(p) - len(p)%bytesPerSample
	m.Render(p[:n])
	return n, nil
}

// Pending is the number of voices not yet fully rendered.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

func resample(in []float32, from, to int) []float32 {
	if len(in) == 0 {
		return nil
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]float32, n)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j+1 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
