// Package core drives entities through a shared hfsm graph.
//
// The engine itself is synchronous and unsynchronized. A Machine owns one
// entity's ObjectState and serializes every Execute on it, either from its
// own event loop (Send) or from the caller's goroutine (Dispatch). Machines
// persist their state after each state change and publish a record of every
// handled event through pluggable components.
package core

import (
	"context"
	"time"

	"github.com/comalice/hfsm"
)

// Envelope carries an event and its message through queues and sources.
type Envelope struct {
	Event hfsm.EventID
	Msg   any
}

type EventSource interface {
	Events() <-chan Envelope
}

// Snapshot is the persisted form of one entity.
type Snapshot struct {
	EntityID  string           `json:"entityID" yaml:"entityID"`
	State     hfsm.ObjectState `json:"state" yaml:"state"`
	Timestamp time.Time        `json:"timestamp" yaml:"timestamp"`
}

// Persister stores snapshots. Load must return an error matching
// ErrNotFound for unknown entities.
type Persister interface {
	Save(ctx context.Context, snapshot Snapshot) error
	Load(ctx context.Context, entityID string) (Snapshot, error)
	Delete(ctx context.Context, entityID string) error
}

// TransitionRecord describes one handled event.
type TransitionRecord struct {
	EntityID  string         `json:"entityID" yaml:"entityID"`
	Event     hfsm.EventID   `json:"event" yaml:"event"`
	Result    hfsm.Result    `json:"result" yaml:"result"`
	From      hfsm.StateID   `json:"from" yaml:"from"`
	To        hfsm.StateID   `json:"to" yaml:"to"`
	Stack     []hfsm.StateID `json:"stack" yaml:"stack"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, record TransitionRecord) error
	Close() error
}
