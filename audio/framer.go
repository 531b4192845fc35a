package audio

// Framer regroups device callbacks of arbitrary length into frames of a
// fixed block size. At most one partial frame is held between calls.
type Framer struct {
	block   int
	pending []float32
}

// NewFramer returns a Framer producing frames of size samples.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &Framer{block: size, pending: make([]float32, 0, size)}
}

// Write appends samples and calls emit once per completed frame. The frame
// slice is only valid for the duration of the call.
func (f *Framer) Write(samples []float32, emit func(frame []float32)) {
	for len(samples) > 0 {
		n := f.block - len(f.pending)
		if n > len(samples) {
			n = len(samples)
		}
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]
		if len(f.pending) == f.block {
			emit(f.pending)
			f.pending = f.pending[:0]
		}
	}
}

// Pending is the number of buffered samples not yet emitted.
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Reset drops any partial frame.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}
