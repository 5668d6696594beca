// Package enginetest provides test doubles for the alert engine.
package enginetest

import (
	"sort"
	"sync"
	"time"

	"alert_console/internal/engine"
)

// ManualClock is an engine.Clock that only moves when Advance is called.
// Due callbacks run synchronously inside Advance, in deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	c       *ManualClock
	at      time.Time
	seq     int
	f       func()
	stopped bool
}

// NewManualClock starts the clock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{c: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward by d and fires every timer that became due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.Slice(c.pending, func(i, j int) bool {
			if c.pending[i].at.Equal(c.pending[j].at) {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].at.Before(c.pending[j].at)
		})
		if len(c.pending) == 0 || c.pending[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// Pending is the number of scheduled, unstopped timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for i, p := range t.c.pending {
		if p == t {
			t.c.pending = append(t.c.pending[:i], t.c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// RecordingSink collects emitted effects. FailKinds makes Emit fail for
// the listed kinds.
type RecordingSink struct {
	mu        sync.Mutex
	Effects   []engine.Effect
	FailKinds map[engine.EffectKind]error
}

func (s *RecordingSink) Emit(e engine.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailKinds[e.Kind]; ok {
		return err
	}
	s.Effects = append(s.Effects, e)
	return nil
}

// Kinds lists the kinds of recorded effects in order.
func (s *RecordingSink) Kinds() []engine.EffectKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.EffectKind, 0, len(s.Effects))
	for _, e := range s.Effects {
		out = append(out, e.Kind)
	}
	return out
}

// Last returns the most recent effect of kind.
func (s *RecordingSink) Last(kind engine.EffectKind) (engine.Effect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.Effects) - 1; i >= 0; i-- {
		if s.Effects[i].Kind == kind {
			return s.Effects[i], true
		}
	}
	return engine.Effect{}, false
}

// Reset drops every recorded effect.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Effects = nil
}
