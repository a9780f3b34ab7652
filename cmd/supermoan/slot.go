package main

import "sync"

// playbackSlot is the single-slot mailbox between the monitor loop
// (producer) and the player loop (consumer).
//
// Transition rules:
//   - publish overwrites a pending not-yet-claimed level and signals the
//     consumer. Rapid motion therefore never builds a backlog: the audible
//     output reflects the most recent intensity, not a queue of history.
//   - publish of the level currently being played is a no-op, suppressing
//     redundant re-triggering of an identical, already-playing clip.
//   - take blocks until a level is pending or the slot is closed. Claiming
//     empties the slot and marks the consumer busy; the playback itself runs
//     outside the lock.
//   - close wakes the consumer unconditionally so it can observe shutdown
//     even with an empty slot. Idempotent.
//
// Invariant: at most one claimed level is in flight at a time; a fresher
// publish never interrupts it, it only replaces what plays next.
type playbackSlot struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending      int  // 0 = empty, 1..10 = level waiting to be claimed
	playing      bool // Consumer is between take and donePlaying
	playingLevel int  // Valid while playing
	closed       bool

	// Overwrite tracking, surfaced through stats for observability.
	overwrites int64
	suppressed int64
}

func newPlaybackSlot() *playbackSlot {
	s := &playbackSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// publish offers a new intensity level to the consumer. Never blocks.
func (s *playbackSlot) publish(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	// Identical level already playing: nothing to do. A different level is
	// still published so it plays next once the current clip finishes.
	if s.playing && level == s.playingLevel && s.pending == 0 {
		s.suppressed++
		return
	}

	if s.pending != 0 && s.pending != level {
		s.overwrites++
	}
	s.pending = level
	s.cond.Signal()
}

// take blocks until a level is pending, claims it and marks the consumer
// busy. Returns ok=false when the slot has been closed; the consumer must
// exit without calling donePlaying.
func (s *playbackSlot) take() (level int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.pending == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed {
		return 0, false
	}

	level = s.pending
	s.pending = 0
	s.playing = true
	s.playingLevel = level
	return level, true
}

// donePlaying clears the busy flag after a playback invocation returns.
func (s *playbackSlot) donePlaying() {
	s.mu.Lock()
	s.playing = false
	s.playingLevel = 0
	s.mu.Unlock()
}

// close marks the slot closed and wakes the consumer. Safe to call from any
// goroutine, any number of times, including while a playback is in flight;
// the consumer finishes its current clip and then observes the close.
func (s *playbackSlot) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// counters returns the overwrite/suppression totals.
func (s *playbackSlot) counters() (overwrites, suppressed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwrites, s.suppressed
}
