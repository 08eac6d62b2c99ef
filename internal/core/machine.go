package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/logger"
)

// Machine runs one entity. All methods are safe for concurrent use.
type Machine[C, M any] struct {
	id    string
	graph *hfsm.Graph[C, M]
	start hfsm.StateID
	app   C
	opts  options

	mu sync.Mutex // guards os and every Execute on it
	os hfsm.ObjectState

	life    sync.Mutex // guards done, cancel and wg.Add
	queue   chan Envelope
	done    chan struct{}
	started atomic.Bool
	paused  atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
}

// NewMachine creates a machine for the entity whose context is app. start is
// the state entered when no snapshot exists, and the state the entity is
// reset to after an internal failure.
func NewMachine[C, M any](g *hfsm.Graph[C, M], app C, start hfsm.StateID, opts ...Option) *Machine[C, M] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.entityID == "" {
		o.entityID = uuid.NewString()
	}
	return &Machine[C, M]{
		id:    o.entityID,
		graph: g,
		start: start,
		app:   app,
		opts:  o,
		os:    hfsm.NewObjectState(start),
		queue: make(chan Envelope, o.queueSize),
		done:  make(chan struct{}),
		log:   o.logger.With(logger.Entity(o.entityID)),
	}
}

func (m *Machine[C, M]) ID() string { return m.id }

// Context returns the application context the machine passes to callbacks.
func (m *Machine[C, M]) Context() C { return m.app }

// State returns a copy of the entity's current record.
func (m *Machine[C, M]) State() hfsm.ObjectState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.os
}

// Start restores the entity from the persister, or enters the start state
// when there is nothing to restore, then launches the event loop. Restoring
// runs no Entry callbacks. Calling Start again is a no-op.
func (m *Machine[C, M]) Start(ctx context.Context) error {
	m.life.Lock()
	defer m.life.Unlock()
	if m.stopped() {
		return ErrStopped
	}
	if m.started.Load() {
		return nil
	}

	if err := m.restore(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.wg.Add(1)
	go m.interpret(runCtx)

	if m.opts.source != nil {
		m.wg.Add(1)
		go m.forward(runCtx, m.opts.source)
	}
	m.started.Store(true)
	return nil
}

func (m *Machine[C, M]) restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.opts.persister; p != nil {
		snap, err := p.Load(ctx, m.id)
		switch {
		case err == nil:
			if verr := snap.State.Validate(); verr != nil {
				return fmt.Errorf("restore %s: %w", m.id, verr)
			}
			m.os = snap.State
			m.log.Debug("restored", logger.Stack(m.os))
			return nil
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("restore %s: %w", m.id, err)
		}
	}

	if res := m.graph.Start(&m.os, m.start, m.app); res == hfsm.ResultInternalFailure {
		return fmt.Errorf("%w: state %s", ErrStartFailed, m.start)
	}
	m.log.Debug("started", logger.Stack(m.os))
	return m.save(ctx)
}

// interpret is the event loop.
func (m *Machine[C, M]) interpret(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case env := <-m.queue:
			msg, ok := message[M](env.Msg)
			if !ok {
				m.log.Warn("dropping event", logger.EventID(env.Event),
					logger.Error(ErrInvalidMessage), slog.String("type", fmt.Sprintf("%T", env.Msg)))
				continue
			}
			if _, err := m.dispatch(ctx, env.Event, msg); err != nil {
				m.log.Error("dispatch failed", logger.EventID(env.Event), logger.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Machine[C, M]) forward(ctx context.Context, src EventSource) {
	defer m.wg.Done()
	events := src.Events()
	for {
		select {
		case env, ok := <-events:
			if !ok {
				return
			}
			if err := m.enqueue(env); err != nil {
				m.log.Warn("dropping sourced event", logger.EventID(env.Event), logger.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Send queues an event for the event loop without waiting for it to be
// handled.
func (m *Machine[C, M]) Send(event hfsm.EventID, msg M) error {
	return m.enqueue(Envelope{Event: event, Msg: msg})
}

func (m *Machine[C, M]) enqueue(env Envelope) error {
	if err := m.accepting(); err != nil {
		return err
	}
	select {
	case m.queue <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dispatch handles an event on the caller's goroutine and returns the
// engine's result. The error reports persistence problems and machine
// lifecycle state, never the outcome of the transition itself.
func (m *Machine[C, M]) Dispatch(ctx context.Context, event hfsm.EventID, msg M) (hfsm.Result, error) {
	if err := m.accepting(); err != nil {
		return hfsm.ResultNoTransition, err
	}
	return m.dispatch(ctx, event, msg)
}

func (m *Machine[C, M]) dispatch(ctx context.Context, event hfsm.EventID, msg M) (hfsm.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.os.Current()
	res := m.graph.Execute(&m.os, event, m.app, msg)

	var err error
	switch res {
	case hfsm.ResultNewState:
		err = m.save(ctx)
	case hfsm.ResultInternalFailure:
		m.log.Error("internal failure, resetting to start state",
			logger.EventID(event), logger.Stack(m.os), logger.StateID("start", m.start))
		m.os.SetStartState(m.start, from)
		err = m.save(ctx)
	case hfsm.ResultNoTransition:
		m.log.Debug("event ignored", logger.EventID(event), logger.StateID("state", from))
		return res, nil
	}

	m.log.Debug("event handled",
		logger.EventID(event), logger.Result(res), logger.StateID("from", from), logger.Stack(m.os))
	m.publish(ctx, TransitionRecord{
		EntityID:  m.id,
		Event:     event,
		Result:    res,
		From:      from,
		To:        m.os.Current(),
		Stack:     m.os.Active(),
		Timestamp: time.Now(),
	})
	return res, err
}

// save persists the current record. Callers hold mu.
func (m *Machine[C, M]) save(ctx context.Context) error {
	if m.opts.persister == nil {
		return nil
	}
	snap := Snapshot{EntityID: m.id, State: m.os, Timestamp: time.Now()}
	if err := m.opts.persister.Save(ctx, snap); err != nil {
		return fmt.Errorf("save %s: %w", m.id, err)
	}
	return nil
}

func (m *Machine[C, M]) publish(ctx context.Context, rec TransitionRecord) {
	if m.opts.publisher == nil {
		return
	}
	if err := m.opts.publisher.Publish(ctx, rec); err != nil {
		m.log.Warn("publish failed", logger.EventID(rec.Event), logger.Error(err))
	}
}

// Pause makes the machine reject events until Resume. Events already queued
// are still handled.
func (m *Machine[C, M]) Pause() { m.paused.Store(true) }

func (m *Machine[C, M]) Resume() { m.paused.Store(false) }

func (m *Machine[C, M]) Paused() bool { return m.paused.Load() }

// Reset puts the entity back in its start state without running callbacks.
func (m *Machine[C, M]) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.os.SetStartState(m.start, m.os.Current())
	return m.save(ctx)
}

// Stop ends the event loop and waits for it. Queued events are discarded.
// Safe to call more than once.
func (m *Machine[C, M]) Stop() error {
	m.life.Lock()
	if !m.stopped() {
		close(m.done)
		if m.cancel != nil {
			m.cancel()
		}
	}
	m.life.Unlock()
	m.wg.Wait()
	return nil
}

func (m *Machine[C, M]) stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Machine[C, M]) accepting() error {
	switch {
	case m.stopped():
		return ErrStopped
	case !m.started.Load():
		return ErrNotStarted
	case m.paused.Load():
		return ErrPaused
	}
	return nil
}

// message converts a queued message to M. A nil message becomes M's zero
// value.
func message[M any](v any) (M, bool) {
	var zero M
	if v == nil {
		return zero, true
	}
	msg, ok := v.(M)
	return msg, ok
}
