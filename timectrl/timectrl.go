// Package timectrl drives the mission clock from outside the executor.
package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock gives components read access to simulation time without
// depending on the controller that advances it.
type SimClock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime paces ticks against the wall clock.
	RealTime Mode = iota
	// Accelerated steps as quickly as the listeners return.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TimeController advances simulation time in fixed ticks and notifies
// registered listeners after each one.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	ticks       int

	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Ticks returns how many ticks have been stepped.
func (tc *TimeController) Ticks() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ticks
}

// SetTime moves the clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Step advances the clock by one tick and runs the listeners.
func (tc *TimeController) Step() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.ticks++
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Run steps until maxTicks have elapsed (0 means no limit) or ctx is done.
// It returns the number of ticks stepped and ctx's error if it stopped
// early.
func (tc *TimeController) Run(ctx context.Context, maxTicks int) (int, error) {
	var pace <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		pace = ticker.C
	}

	n := 0
	for maxTicks <= 0 || n < maxTicks {
		if pace != nil {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return n, err
		}
		tc.Step()
		n++
	}
	return n, nil
}

// Start runs the controller in a separate goroutine. The returned channel
// is closed when it finishes.
func (tc *TimeController) Start(ctx context.Context, maxTicks int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tc.Run(ctx, maxTicks)
	}()
	return done
}
