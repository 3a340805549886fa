package watcher

import (
	"sync"
	"time"
)

// Scheduler holds at most one delayed task. Scheduling replaces the pending
// task and restarts its timer, so a burst of calls yields a single run.
type Scheduler struct {
	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64
	closed bool
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule runs task after delay unless another Schedule or Cancel happens first.
func (s *Scheduler) Schedule(task func(), delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}

	s.seq++
	seq := s.seq
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A timer that fired while being replaced must not run
		if s.closed || s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		task()
	})
}

// Pending reports whether a task is waiting to run
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Cancel drops the pending task, reporting whether there was one
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

func (s *Scheduler) cancelLocked() bool {
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.seq++
	return true
}

// Close cancels the pending task and rejects future ones
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.closed = true
}
