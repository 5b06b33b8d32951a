package runner

import (
	"sync"
	"time"
)

// manualScheduler fires timers only when Advance is called.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s         *manualScheduler
	due       time.Duration
	interval  time.Duration // 0 for one-shot
	fn        func()
	cancelled bool
}

func (t *manualTimer) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.cancelled = true
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) Handle {
	return s.add(interval, interval, fn)
}

func (s *manualScheduler) After(delay time.Duration, fn func()) Handle {
	return s.add(delay, 0, fn)
}

func (s *manualScheduler) add(delay, interval time.Duration, fn func()) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, due: s.now + delay, interval: interval, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves time forward by d, firing due timers in order. Callbacks
// run without the scheduler lock so they may schedule or cancel timers.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		var next *manualTimer
		for _, t := range s.timers {
			if t.cancelled || t.due > target {
				continue
			}
			if next == nil || t.due < next.due {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.due
		if next.interval > 0 {
			next.due += next.interval
		} else {
			next.cancelled = true
		}
		s.mu.Unlock()
		next.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// Live counts timers that have not been cancelled or fired.
func (s *manualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// LiveIntervals returns the intervals of live repeating timers.
func (s *manualScheduler) LiveIntervals() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.cancelled && t.interval > 0 {
			out = append(out, t.interval)
		}
	}
	return out
}
