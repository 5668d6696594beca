package engine

import "time"

// Clock is the time source of the engine.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// RealClock returns a Clock backed by package time.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// serialClock hands every timer callback to post, so callbacks run on the
// goroutine that drains post instead of the runtime timer goroutine.
type serialClock struct {
	base Clock
	post func(func())
}

// SerialClock wraps base so that fired callbacks are delivered through post.
func SerialClock(base Clock, post func(func())) Clock {
	return serialClock{base: base, post: post}
}

func (c serialClock) Now() time.Time { return c.base.Now() }

func (c serialClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.base.AfterFunc(d, func() { c.post(f) })
}

type timerEntry struct {
	timer Timer
	gen   uint64
}

// TimerSet holds the named timers that belong to one alert. A callback only
// runs if its timer is still the live one under that name, which makes a
// stopped or replaced timer harmless even when its callback was already queued.
// A TimerSet is not safe for concurrent use.
type TimerSet struct {
	clock   Clock
	timers  map[string]timerEntry
	gen     uint64
	stopped bool
}

// NewTimerSet returns an empty set driven by clock.
func NewTimerSet(clock Clock) *TimerSet {
	return &TimerSet{clock: clock, timers: make(map[string]timerEntry)}
}

// Start schedules f after d under name, replacing a pending timer of the same name.
func (s *TimerSet) Start(name string, d time.Duration, f func()) {
	if s.stopped {
		return
	}
	s.Cancel(name)
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(d, func() {
		cur, ok := s.timers[name]
		if s.stopped || !ok || cur.gen != gen {
			return
		}
		delete(s.timers, name)
		f()
	})
	s.timers[name] = timerEntry{timer: t, gen: gen}
}

// Cancel stops the timer registered under name, if any.
func (s *TimerSet) Cancel(name string) {
	if e, ok := s.timers[name]; ok {
		e.timer.Stop()
		delete(s.timers, name)
	}
}

// Active reports whether a timer under name is pending.
func (s *TimerSet) Active(name string) bool {
	_, ok := s.timers[name]
	return ok
}

// Len is the number of pending timers.
func (s *TimerSet) Len() int { return len(s.timers) }

// StopAll cancels every pending timer and refuses new ones.
func (s *TimerSet) StopAll() {
	for name := range s.timers {
		s.Cancel(name)
	}
	s.stopped = true
}
