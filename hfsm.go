// Package hfsm is a hierarchical finite-state-machine runtime.
//
// A Graph is built once with a Builder and then shared by any number of
// entities. Each entity owns an ObjectState that records its active state
// stack; Execute advances one entity by one event.
package hfsm

import "fmt"

type StateID int
type EventID int64

// Reserved state ids. Real states are always >= 0.
const (
	StateSame   StateID = -1
	StateParent StateID = -2
	StateAny    StateID = -3
)

// EventCatch is the internal event carried by catch transitions. Application
// events must never use it.
const EventCatch EventID = -1

// EventTimeout is a conventional id for timer-generated events.
const EventTimeout EventID = 0xFFFFBEEF

// MaxNestDepth bounds the active state stack.
const MaxNestDepth = 4

type Action[C, M any] func(ctx C, msg M) bool
type Condition[C, M any] func(ctx C, msg M) bool
type Entry[C any] func(ctx C)
type Exit[C any] func(ctx C)

// Result is the outcome of a single Execute call.
type Result int

const (
	ResultNewState Result = iota
	ResultNoChange
	ResultNoTransition
	ResultActionFailure
	ResultInternalFailure
)

func (r Result) String() string {
	switch r {
	case ResultNewState:
		return "NewState"
	case ResultNoChange:
		return "NoChange"
	case ResultNoTransition:
		return "NoTransition"
	case ResultActionFailure:
		return "ActionFailure"
	case ResultInternalFailure:
		return "InternalFailure"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

func (id StateID) String() string {
	switch id {
	case StateSame:
		return "SAME"
	case StateParent:
		return "PARENT"
	case StateAny:
		return "ANY"
	}
	return fmt.Sprintf("%d", int(id))
}

func (id EventID) String() string {
	switch id {
	case EventCatch:
		return "CATCH"
	case EventTimeout:
		return "TIMEOUT"
	}
	return fmt.Sprintf("%d", int64(id))
}
