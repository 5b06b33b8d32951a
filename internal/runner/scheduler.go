package runner

import (
	"sync"
	"time"
)

// Handle is a cancellable scheduled task.
type Handle interface {
	// Cancel stops future firings. It does not wait for a firing in
	// progress and is safe to call more than once.
	Cancel()
}

// Scheduler arms periodic and one-shot tasks.
//
// Implemented by TickerScheduler (production). Tests substitute a manual
// scheduler that fires on demand.
type Scheduler interface {
	// Every calls fn every interval until the handle is cancelled.
	Every(interval time.Duration, fn func()) Handle

	// After calls fn once after delay unless the handle is cancelled first.
	After(delay time.Duration, fn func()) Handle
}

// TickerScheduler schedules on the wall clock using time.Ticker and
// time.AfterFunc. The zero value is ready to use.
type TickerScheduler struct{}

// Every starts a goroutine that calls fn on each tick. Firings never
// overlap; ticks that arrive while fn runs are dropped by the ticker.
func (TickerScheduler) Every(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{stop: make(chan struct{})}
	t := time.NewTicker(interval)

	go func() {
		defer t.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-t.C:
				// Cancel may have raced with the tick.
				select {
				case <-h.stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}

// After wraps time.AfterFunc.
func (TickerScheduler) After(delay time.Duration, fn func()) Handle {
	return timerHandle{time.AfterFunc(delay, fn)}
}

type tickerHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}

type timerHandle struct {
	t *time.Timer
}

func (h timerHandle) Cancel() {
	h.t.Stop()
}
