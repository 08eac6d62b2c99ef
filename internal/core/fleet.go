package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/comalice/hfsm"
)

// Fleet runs many entities over one graph. Options given to NewFleet apply
// to every machine; options given to Spawn are applied after them.
type Fleet[C, M any] struct {
	graph *hfsm.Graph[C, M]
	start hfsm.StateID
	opts  []Option

	mu       sync.RWMutex
	machines map[string]*Machine[C, M]
}

func NewFleet[C, M any](g *hfsm.Graph[C, M], start hfsm.StateID, opts ...Option) *Fleet[C, M] {
	return &Fleet[C, M]{
		graph:    g,
		start:    start,
		opts:     opts,
		machines: make(map[string]*Machine[C, M]),
	}
}

// Spawn creates and starts a machine for app. Pass WithEntityID to resume a
// persisted entity.
func (f *Fleet[C, M]) Spawn(ctx context.Context, app C, opts ...Option) (*Machine[C, M], error) {
	all := append(append([]Option(nil), f.opts...), opts...)
	m := NewMachine(f.graph, app, f.start, all...)

	f.mu.Lock()
	if _, exists := f.machines[m.ID()]; exists {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrEntityExists, m.ID())
	}
	f.machines[m.ID()] = m
	f.mu.Unlock()

	if err := m.Start(ctx); err != nil {
		f.mu.Lock()
		delete(f.machines, m.ID())
		f.mu.Unlock()
		return nil, err
	}
	return m, nil
}

func (f *Fleet[C, M]) Get(id string) (*Machine[C, M], bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.machines[id]
	return m, ok
}

func (f *Fleet[C, M]) Dispatch(ctx context.Context, id string, event hfsm.EventID, msg M) (hfsm.Result, error) {
	m, ok := f.Get(id)
	if !ok {
		return hfsm.ResultNoTransition, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return m.Dispatch(ctx, event, msg)
}

func (f *Fleet[C, M]) Send(id string, event hfsm.EventID, msg M) error {
	m, ok := f.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return m.Send(event, msg)
}

// Broadcast queues event on every machine and returns how many accepted it.
func (f *Fleet[C, M]) Broadcast(event hfsm.EventID, msg M) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, m := range f.machines {
		if m.Send(event, msg) == nil {
			n++
		}
	}
	return n
}

// Remove stops the machine and forgets it. Its snapshot is kept.
func (f *Fleet[C, M]) Remove(id string) error {
	f.mu.Lock()
	m, ok := f.machines[id]
	delete(f.machines, id)
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return m.Stop()
}

// IDs returns the entity ids in sorted order.
func (f *Fleet[C, M]) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.machines))
	for id := range f.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *Fleet[C, M]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.machines)
}

// StopAll stops and forgets every machine.
func (f *Fleet[C, M]) StopAll() {
	f.mu.Lock()
	machines := f.machines
	f.machines = make(map[string]*Machine[C, M])
	f.mu.Unlock()
	for _, m := range machines {
		m.Stop()
	}
}
