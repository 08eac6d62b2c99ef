package production

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/comalice/hfsm/internal/core"
	"github.com/comalice/hfsm/internal/logger"
)

// ChannelPublisher forwards records to a channel. Publish never blocks: a
// record that does not fit is dropped and counted.
type ChannelPublisher struct {
	ch      chan<- core.TransitionRecord
	dropped atomic.Int64
	once    sync.Once
}

func NewChannelPublisher(ch chan<- core.TransitionRecord) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, record core.TransitionRecord) error {
	select {
	case p.ch <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped.Add(1)
		return nil
	}
}

// Dropped reports how many records did not fit in the channel.
func (p *ChannelPublisher) Dropped() int64 { return p.dropped.Load() }

func (p *ChannelPublisher) Close() error {
	p.once.Do(func() { close(p.ch) })
	return nil
}

// LogPublisher writes each record to a logger at info level. Names, when
// set, render ids as declared names.
type LogPublisher struct {
	log   *slog.Logger
	names Namer
}

func NewLogPublisher(log *slog.Logger, names Namer) *LogPublisher {
	if names == nil {
		names = idNamer{}
	}
	return &LogPublisher{log: log, names: names}
}

func (p *LogPublisher) Publish(ctx context.Context, r core.TransitionRecord) error {
	stack := make([]string, len(r.Stack))
	for i, id := range r.Stack {
		stack[i] = p.names.StateName(id)
	}
	p.log.InfoContext(ctx, "transition",
		logger.Entity(r.EntityID),
		slog.String("event", p.names.EventName(r.Event)),
		logger.Result(r.Result),
		slog.String("from", p.names.StateName(r.From)),
		slog.String("to", p.names.StateName(r.To)),
		slog.Any("stack", stack),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MultiPublisher fans a record out to several publishers and returns the
// first error.
type MultiPublisher []core.Publisher

func (m MultiPublisher) Publish(ctx context.Context, r core.TransitionRecord) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiPublisher) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
