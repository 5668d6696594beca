package control

import (
	"context"
	"sync"
	"time"

	"alert_console/internal/engine"
)

// Result reports how a debounced call ended. Latest is false when another
// call was submitted for the same key after this one.
type Result struct {
	Seq    uint64
	Err    error
	Latest bool
}

type pendingCall struct {
	timer engine.Timer
	seq   uint64
}

// Debouncer delays calls per key by a quiet window. A call submitted while
// an earlier one for the same key is still waiting replaces it, so only the
// last write inside a window reaches the network.
type Debouncer struct {
	clock   engine.Clock
	window  time.Duration
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]pendingCall
	seq     map[string]uint64
	closed  bool
	wg      sync.WaitGroup
}

// NewDebouncer waits window before running a call and gives each call timeout to finish.
func NewDebouncer(clock engine.Clock, window, timeout time.Duration) *Debouncer {
	if clock == nil {
		clock = engine.RealClock()
	}
	return &Debouncer{
		clock:   clock,
		window:  window,
		timeout: timeout,
		pending: make(map[string]pendingCall),
		seq:     make(map[string]uint64),
	}
}

// Submit schedules call under key and returns its sequence number. done,
// when non-nil, receives the outcome once call has run. A replaced call
// never runs and done is not invoked for it.
func (d *Debouncer) Submit(key string, call func(ctx context.Context) error, done func(Result)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}

	if p, ok := d.pending[key]; ok && p.timer.Stop() {
		d.wg.Done()
	}
	d.seq[key]++
	seq := d.seq[key]

	d.wg.Add(1)
	t := d.clock.AfterFunc(d.window, func() {
		defer d.wg.Done()
		d.mu.Lock()
		p, ok := d.pending[key]
		if !ok || p.seq != seq {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := call(ctx)
		cancel()

		if done != nil {
			d.mu.Lock()
			latest := d.seq[key] == seq
			d.mu.Unlock()
			done(Result{Seq: seq, Err: err, Latest: latest})
		}
	})
	d.pending[key] = pendingCall{timer: t, seq: seq}
	return seq
}

// Pending reports whether a call for key is still waiting out its window.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Close drops every waiting call and blocks until running calls finish.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for key, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
