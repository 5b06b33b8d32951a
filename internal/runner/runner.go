// Package runner drives a machine automatically at a chosen speed.
//
// A Runner owns at most one live timer. Each firing performs exactly one
// step; a halting step or any step error stops the run. Changing the speed
// mid-run cancels the old timer and arms a new one after SettleDelay.
package runner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/turingloom/internal/machine"
)

// Machine is the part of *machine.Machine the runner drives.
type Machine interface {
	Step() (machine.StepResult, error)
	Start() bool
	Stop()
}

// StepHook observes every step the runner performs, including failed ones.
// It is called without the runner's lock held and may call Stop.
type StepHook func(res machine.StepResult, err error)

// Runner repeatedly steps a machine on a timer.
//
// Thread-safety: all methods are safe for concurrent use.
type Runner struct {
	// stepMu is held across a timer step, from the generation check until
	// Step returns. Stop takes it so no step is in flight once it returns.
	// Lock order is stepMu before mu.
	stepMu sync.Mutex
	mu     sync.Mutex

	m      Machine
	sched  Scheduler
	speed  Speed
	hook   StepHook
	logger *slog.Logger

	active bool
	gen    uint64 // bumped whenever the armed timer changes
	tick   Handle
	settle Handle
	done   chan struct{}
}

// Option configures a Runner.
type Option func(*Runner)

// WithScheduler sets the scheduler (default: TickerScheduler).
func WithScheduler(s Scheduler) Option {
	return func(r *Runner) {
		r.sched = s
	}
}

// WithSpeed sets the initial speed (default: DefaultSpeed).
func WithSpeed(s Speed) Option {
	return func(r *Runner) {
		r.speed = s
	}
}

// WithStepHook registers a function called after each automatic step.
func WithStepHook(h StepHook) Option {
	return func(r *Runner) {
		r.hook = h
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a stopped runner for m.
func New(m Machine, opts ...Option) *Runner {
	r := &Runner{
		m:      m,
		sched:  TickerScheduler{},
		speed:  DefaultSpeed,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins auto-running. A halted machine is reset first. Returns false
// if the runner was already running, in which case nothing changes.
func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return false
	}

	if r.m.Start() {
		r.logger.Debug("machine reset before run")
	}
	r.active = true
	r.done = make(chan struct{})
	r.gen++
	r.arm(r.gen)
	r.logger.Debug("run started", "speed", r.speed)
	return true
}

// Stop cancels the timer and any pending speed change and clears the
// machine's running flag. It waits for a step already in progress, so the
// machine does not move after Stop returns. Stopping a stopped runner is a
// no-op.
func (r *Runner) Stop() {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stop()
}

// Toggle starts a stopped runner or stops a running one. Returns whether
// the runner is running afterwards.
func (r *Runner) Toggle() bool {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active {
		r.Stop()
		return false
	}
	r.Start()
	return true
}

// Running reports whether the runner has a run in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Speed returns the current speed.
func (r *Runner) Speed() Speed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// SetSpeed changes the interval. While running, the old timer is cancelled
// and a new one is armed after SettleDelay.
func (r *Runner) SetSpeed(s Speed) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.speed = s
	if !r.active {
		return
	}

	r.cancelTimers()
	r.gen++
	gen := r.gen
	r.settle = r.sched.After(SettleDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen != r.gen || !r.active {
			return
		}
		r.settle = nil
		r.arm(gen)
	})
	r.logger.Debug("speed changed", "speed", s)
}

// Wait blocks until the current run stops or ctx is done. It returns nil
// immediately if nothing is running.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	active := r.active
	r.mu.Unlock()

	if !active {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// arm starts the repeating timer for generation gen. Caller must hold mu.
func (r *Runner) arm(gen uint64) {
	r.tick = r.sched.Every(r.speed.Interval(), func() { r.fire(gen) })
}

// fire performs one step for generation gen. Stale firings from a
// cancelled timer are ignored.
func (r *Runner) fire(gen uint64) {
	r.stepMu.Lock()
	r.mu.Lock()
	live := gen == r.gen && r.active
	r.mu.Unlock()
	if !live {
		r.stepMu.Unlock()
		return
	}
	res, err := r.m.Step()
	r.stepMu.Unlock()

	if r.hook != nil {
		r.hook(res, err)
	}
	if err == nil && !res.Halted {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	if err != nil {
		r.logger.Debug("run stopped by error", "error", err)
	} else {
		r.logger.Debug("run halted", "state", res.ToState)
	}
	r.stop()
}

// stop ends the current run. Caller must hold mu.
func (r *Runner) stop() {
	if !r.active {
		return
	}
	r.cancelTimers()
	r.gen++
	r.active = false
	r.m.Stop()
	close(r.done)
}

// cancelTimers cancels the tick and settle handles. Caller must hold mu.
func (r *Runner) cancelTimers() {
	if r.tick != nil {
		r.tick.Cancel()
		r.tick = nil
	}
	if r.settle != nil {
		r.settle.Cancel()
		r.settle = nil
	}
}
