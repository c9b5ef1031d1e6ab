// Package sched schedules the range's autonomous transitions: delayed,
// fire-once callbacks driven by a SimClock.
package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/cyberrange-simulator/timectrl"
)

// Scheduler registers callbacks to run at specific simulation times. The
// run loop advances the clock and calls RunDue after each advance; the
// engine uses Schedule for scan reverts, scenario attacks, and scenario
// expiry. Scheduling is fire-and-forget: the engine never cancels a
// transition, its fire-time guards suppress stale effects instead.
type Scheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque event ID usable with Cancel.
	Schedule(at time.Time, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled event. It is a no-op
	// if the ID is unknown or the event already ran.
	Cancel(id string)

	// Now returns the current simulation time from the underlying clock.
	Now() time.Time

	// RunDue executes all events whose scheduled time is <= Now(), in
	// nondecreasing scheduled-time order. Already-run events never run again.
	RunDue()
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

type scheduler struct {
	clock timectrl.SimClock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // ordered by 'when', earliest first
	index   map[string]*scheduledEvent
}

// New creates a scheduler backed by the given SimClock. Production wiring
// passes a wall clock; tests pass a fake clock they advance by hand.
func New(clock timectrl.SimClock) Scheduler {
	return &scheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
}

func (s *scheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}
	s.insertLocked(ev)
	s.index[id] = ev

	return id
}

// insertLocked places an event into the slice keeping time order.
// Caller must hold s.mu.
func (s *scheduler) insertLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].when.Before(ev.when)
	})
	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

func (s *scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

func (s *scheduler) Now() time.Time {
	return s.clock.Now()
}

// popDueLocked removes and returns the earliest due, non-cancelled event, or
// nil when nothing is due. Caller must hold s.mu.
func (s *scheduler) popDueLocked() *scheduledEvent {
	now := s.clock.Now()
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			// Events are time-ordered, so everything later is in the future too.
			return nil
		}
		s.events = s.events[1:]
		return ev
	}
	return nil
}

func (s *scheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.popDueLocked()
		if ev == nil {
			s.mu.Unlock()
			return
		}
		delete(s.index, ev.id)
		s.mu.Unlock()

		// Execute outside the lock so callbacks can schedule follow-up
		// events (the scenario runner chains expiry off the attack).
		if ev.f != nil {
			ev.f()
		}
	}
}
