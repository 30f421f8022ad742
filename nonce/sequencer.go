// Package nonce assigns venue nonces and serializes submissions per signer.
package nonce

import (
	"sync"
	"time"
)

// Sequencer hands out millisecond-timestamp nonces that never repeat and
// never go backwards, even if the wall clock does.
type Sequencer struct {
	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

// NewSequencer creates a sequencer reading the system clock
func NewSequencer() *Sequencer {
	return NewSequencerWithClock(time.Now)
}

// NewSequencerWithClock creates a sequencer reading now
func NewSequencerWithClock(now func() time.Time) *Sequencer {
	return &Sequencer{now: now}
}

// Next returns max(now in ms, previous+1)
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := uint64(s.now().UnixMilli())
	if n <= s.last {
		n = s.last + 1
	}
	s.last = n
	return n
}

// Last returns the most recently issued nonce, or 0
func (s *Sequencer) Last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
