package extensibility

import (
	"sync"
	"time"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/core"
)

// Timeout emits one event after its duration has run. It can be paused,
// resumed and re-armed; paused time does not count. Entry callbacks usually
// Reset it and Exit callbacks Cancel it.
type Timeout struct {
	mu        sync.Mutex
	ch        chan core.Envelope
	event     hfsm.EventID
	msg       any
	timer     *time.Timer
	gen       uint64
	deadline  time.Time
	remaining time.Duration
	running   bool
	closed    bool
}

// NewTimeout returns a disarmed timeout that will emit event with msg.
// Use hfsm.EventTimeout for the conventional timeout event.
func NewTimeout(event hfsm.EventID, msg any) *Timeout {
	return &Timeout{
		ch:    make(chan core.Envelope, 1),
		event: event,
		msg:   msg,
	}
}

func (t *Timeout) Events() <-chan core.Envelope { return t.ch }

// Reset arms the timeout to fire after d, replacing any pending deadline and
// clearing a pause. An event that fired but was not yet consumed is dropped.
func (t *Timeout) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.stopTimer()
	t.drain()
	t.remaining = d
	t.arm()
}

// Cancel disarms the timeout and drops an unconsumed event.
func (t *Timeout) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer()
	t.remaining = 0
	if !t.closed {
		t.drain()
	}
}

// Pause freezes the remaining time.
func (t *Timeout) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.stopTimer()
	t.remaining = max(time.Until(t.deadline), 0)
}

// Resume continues a paused timeout.
func (t *Timeout) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.closed || t.remaining <= 0 {
		return
	}
	t.arm()
}

// Remaining reports how long until the timeout fires. It is zero once fired
// or cancelled.
func (t *Timeout) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return max(time.Until(t.deadline), 0)
	}
	return t.remaining
}

func (t *Timeout) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Stop disarms the timeout for good and closes its channel.
func (t *Timeout) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.stopTimer()
	t.closed = true
	close(t.ch)
}

// arm starts the timer for t.remaining. Callers hold mu.
func (t *Timeout) arm() {
	t.deadline = time.Now().Add(t.remaining)
	t.running = true
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.remaining, func() { t.fire(gen) })
}

// drain empties the channel. Callers hold mu.
func (t *Timeout) drain() {
	select {
	case <-t.ch:
	default:
	}
}

func (t *Timeout) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.running = false
}

func (t *Timeout) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A timer replaced by Reset or stopped by Pause may still fire.
	if t.closed || !t.running || gen != t.gen {
		return
	}
	t.timer = nil
	t.running = false
	t.remaining = 0
	select {
	case t.ch <- core.Envelope{Event: t.event, Msg: t.msg}:
	default:
	}
}
