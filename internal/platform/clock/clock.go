// Package clock provides the virtual time source for the clinic flow service.
// Every wait-time computation routes through a Clock rather than reading the
// OS clock directly, so an operator can freeze and replay a clinic day in
// simulated mode without restarting the server.
package clock

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotSimulated is returned when the clock is adjusted outside simulated mode.
var ErrNotSimulated = errors.New("clock: not in simulated mode")

// DefaultTickInterval is the real-world period of the tick counter.
const DefaultTickInterval = time.Second

// Clock is a switchable time source. In real mode Now returns the wall clock;
// in simulated mode it returns a held instant that only moves via Adjust or
// SetTime. A single background ticker increments a monotonic counter that
// dependent components subscribe to instead of polling Now.
type Clock struct {
	mu        sync.RWMutex
	simulated bool
	simNow    time.Time

	ticks atomic.Uint64

	subMu   sync.Mutex
	subs    map[int]chan uint64
	nextSub int

	ticker *time.Ticker
	done   chan struct{}
	closed bool
}

// New creates a Clock in real-time mode and starts its tick counter.
// A non-positive interval falls back to DefaultTickInterval.
func New(interval time.Duration) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	c := &Clock{
		subs:   make(map[int]chan uint64),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Clock) run() {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			n := c.ticks.Add(1)
			c.broadcast(n)
		}
	}
}

func (c *Clock) broadcast(n uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		// Non-blocking: a slow subscriber drops ticks, it never blocks
		// the ticker or the other subscribers.
		select {
		case ch <- n:
		default:
		}
	}
}

// Now returns the current time according to the clock's active mode.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.simulated {
		return c.simNow
	}
	return time.Now()
}

// IsSimulated reports whether the clock is in simulated mode.
func (c *Clock) IsSimulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulated
}

// SetSimulated switches the clock's mode. Entering simulated mode freezes the
// clock at the current wall-clock instant; leaving it discards the held
// instant and resumes tracking the wall clock. The swap happens under the
// write lock so a concurrent Now never observes a half-updated state.
func (c *Clock) SetSimulated(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on == c.simulated {
		return
	}
	if on {
		c.simNow = time.Now()
	} else {
		c.simNow = time.Time{}
	}
	c.simulated = on
}

// Adjust moves the simulated clock by deltaMinutes (negative moves backward).
// Returns ErrNotSimulated in real-time mode.
func (c *Clock) Adjust(deltaMinutes int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.simulated {
		return ErrNotSimulated
	}
	c.simNow = c.simNow.Add(time.Duration(deltaMinutes) * time.Minute)
	return nil
}

// SetTime sets the simulated clock to an absolute instant.
// Returns ErrNotSimulated in real-time mode.
func (c *Clock) SetTime(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.simulated {
		return ErrNotSimulated
	}
	c.simNow = t
	return nil
}

// Ticks returns the current value of the monotonic tick counter.
func (c *Clock) Ticks() uint64 {
	return c.ticks.Load()
}

// Subscribe registers an independent tick listener. The returned channel
// receives the counter value after each tick; the cancel func removes the
// subscription. Subscribers do not affect each other's view of the counter.
// On a closed clock the returned channel is already closed.
func (c *Clock) Subscribe() (<-chan uint64, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed {
		ch := make(chan uint64)
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	ch := make(chan uint64, 1)
	c.subs[id] = ch
	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Close stops the tick counter and closes all subscription channels.
// It is safe to call more than once.
func (c *Clock) Close() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.ticker.Stop()
	close(c.done)
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
