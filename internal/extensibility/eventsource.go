// Package extensibility holds optional collaborators for core machines:
// event sources that feed them and decorators that instrument callbacks.
package extensibility

import (
	"sync"
	"time"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/core"
)

// ChannelEventSource feeds a machine from a caller-owned channel.
type ChannelEventSource struct {
	ch chan core.Envelope
}

func NewChannelEventSource(ch chan core.Envelope) *ChannelEventSource {
	return &ChannelEventSource{ch: ch}
}

func (s *ChannelEventSource) Events() <-chan core.Envelope { return s.ch }

// Emit queues an event, dropping it when the channel is full.
func (s *ChannelEventSource) Emit(event hfsm.EventID, msg any) bool {
	select {
	case s.ch <- core.Envelope{Event: event, Msg: msg}:
		return true
	default:
		return false
	}
}

// TimerEventSource emits the same event every period until stopped. Ticks
// that find the channel full are dropped.
type TimerEventSource struct {
	ch     chan core.Envelope
	event  hfsm.EventID
	msg    any
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func NewTimerEventSource(event hfsm.EventID, msg any, period time.Duration) *TimerEventSource {
	t := &TimerEventSource{
		ch:     make(chan core.Envelope, 10),
		event:  event,
		msg:    msg,
		ticker: time.NewTicker(period),
		stop:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TimerEventSource) run() {
	for {
		select {
		case <-t.ticker.C:
			select {
			case t.ch <- core.Envelope{Event: t.event, Msg: t.msg}:
			default:
			}
		case <-t.stop:
			t.ticker.Stop()
			close(t.ch)
			return
		}
	}
}

func (t *TimerEventSource) Events() <-chan core.Envelope { return t.ch }

// Stop halts the ticker and closes the event channel.
func (t *TimerEventSource) Stop() {
	t.once.Do(func() { close(t.stop) })
}
