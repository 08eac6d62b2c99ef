// Package builder compiles declarative machine descriptions into graphs.
//
// A description names its callbacks; a Registry maps those names to
// functions. Compile resolves the names, assigns numeric state and event ids
// and builds the graph:
//
//	reg := builder.NewRegistry[*Call, *Msg]().
//		Condition("hasDigits", hasDigits).
//		Action("collectDigit", collectDigit)
//	table, err := builder.Compile(desc, reg)
package builder

import (
	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/primitives"
)

type (
	Description           = primitives.Description
	StateDescription      = primitives.StateDescription
	TransitionDescription = primitives.TransitionDescription
	CatchDescription      = primitives.CatchDescription
)

const (
	TargetSame   = primitives.TargetSame
	TargetParent = primitives.TargetParent
)

// TimeoutEvent is the event name that compiles to hfsm.EventTimeout.
const TimeoutEvent = "TIMEOUT"

var (
	ParseYAML = primitives.ParseYAML
	ParseJSON = primitives.ParseJSON
	LoadFile  = primitives.LoadFile
	NewState  = primitives.NewState
)

// Registry maps callback names used in descriptions to functions.
type Registry[C, M any] struct {
	actions    map[string]hfsm.Action[C, M]
	conditions map[string]hfsm.Condition[C, M]
	entries    map[string]hfsm.Entry[C]
	exits      map[string]hfsm.Exit[C]
}

func NewRegistry[C, M any]() *Registry[C, M] {
	return &Registry[C, M]{
		actions:    make(map[string]hfsm.Action[C, M]),
		conditions: make(map[string]hfsm.Condition[C, M]),
		entries:    make(map[string]hfsm.Entry[C]),
		exits:      make(map[string]hfsm.Exit[C]),
	}
}

func (r *Registry[C, M]) Action(name string, fn hfsm.Action[C, M]) *Registry[C, M] {
	r.actions[name] = fn
	return r
}

func (r *Registry[C, M]) Condition(name string, fn hfsm.Condition[C, M]) *Registry[C, M] {
	r.conditions[name] = fn
	return r
}

func (r *Registry[C, M]) Entry(name string, fn hfsm.Entry[C]) *Registry[C, M] {
	r.entries[name] = fn
	return r
}

func (r *Registry[C, M]) Exit(name string, fn hfsm.Exit[C]) *Registry[C, M] {
	r.exits[name] = fn
	return r
}
