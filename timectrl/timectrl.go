package timectrl

import (
	"sync"
	"time"
)

// SimClock is the clock abstraction the scheduler and engine depend on,
// so tests can substitute a hand-advanced clock for wall time.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// WallClock is the production SimClock: plain wall time.
type WallClock struct{}

// Now implements SimClock.
func (WallClock) Now() time.Time { return time.Now() }

// After implements SimClock.
func (WallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

// TimeController drives simulation time and notifies registered listeners
// on every tick. The run loop registers a listener that fires due scheduler
// events, so autonomous transitions execute as time advances.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

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

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// After returns a channel that receives the simulation time once d has
// elapsed in simulation time, driven by tick listeners.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	deadline := tc.Now().Add(d)

	var once sync.Once
	tc.AddListener(func(now time.Time) {
		if now.Before(deadline) {
			return
		}
		once.Do(func() {
			ch <- now
		})
	})
	return ch
}

// SetTime jumps simulation time to t without notifying listeners. Intended
// for tests and scenario replays.
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

// Start runs the controller for the specified duration in a separate
// goroutine; a duration of zero runs until the process exits. It returns a
// channel that is closed when the controller finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		tc.mu.Unlock()

		elapsed := time.Duration(0)

		// Both modes use a ticker for simplicity and determinism; in
		// Accelerated mode the tick is expected to be very small.
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			<-ticker.C
			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			listeners := make([]func(time.Time), len(tc.listeners))
			copy(listeners, tc.listeners)
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
