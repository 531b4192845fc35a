package audio

import (
	"sync"
)

// Source is one buffer handed to an Output.
type Source interface {
	// Stop silences the source immediately. A stopped source need not
	// report completion.
	Stop()
}

// Output is an audio clock that can play buffers at absolute times.
// Schedule must never invoke onEnded synchronously.
type Output interface {
	CurrentTime() float64
	Schedule(buf *Buffer, at float64, onEnded func()) Source
}

type scheduled struct {
	src   Source
	start float64
}

// Scheduler places decoded buffers back to back on an Output so that each one
// starts exactly when the previous one ends. It owns the live source set.
type Scheduler struct {
	out       Output
	onDrained func()

	mu        sync.Mutex
	nextStart float64
	live      map[*scheduled]struct{}
}

// NewScheduler creates a scheduler. onDrained is called, outside any lock,
// each time the live set becomes empty.
func NewScheduler(out Output, onDrained func()) *Scheduler {
	return &Scheduler{
		out:       out,
		onDrained: onDrained,
		live:      make(map[*scheduled]struct{}),
	}
}

// Enqueue schedules buf at max(cursor, now), advances the cursor by its
// duration and returns the chosen start time.
func (s *Scheduler) Enqueue(buf *Buffer) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.out.CurrentTime()
	if s.nextStart > start {
		start = s.nextStart
	}

	entry := &scheduled{start: start}
	s.live[entry] = struct{}{}
	entry.src = s.out.Schedule(buf, start, func() { s.ended(entry) })
	s.nextStart = start + buf.Duration()
	return start
}

func (s *Scheduler) ended(entry *scheduled) {
	s.mu.Lock()
	if _, ok := s.live[entry]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.live, entry)
	drained := len(s.live) == 0
	s.mu.Unlock()

	if drained && s.onDrained != nil {
		s.onDrained()
	}
}

// Interrupt stops every live source, empties the live set and resets the
// cursor to zero.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	hadLive := len(s.live) > 0
	for entry := range s.live {
		entry.src.Stop()
	}
	clear(s.live)
	s.nextStart = 0
	s.mu.Unlock()

	if hadLive && s.onDrained != nil {
		s.onDrained()
	}
}

// Live is the number of sources scheduled or playing.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// NextStartTime is the current cursor.
func (s *Scheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
