package hfsm

import (
	"log/slog"
)

// Transition is an edge out of a State. Conditions are ANDed left to right
// and actions run in order.
type Transition[C, M any] struct {
	event      EventID
	conditions []Condition[C, M]
	actions    []Action[C, M]
	target     StateID
	subState   bool
}

func (t *Transition[C, M]) Event() EventID   { return t.event }
func (t *Transition[C, M]) Target() StateID  { return t.target }
func (t *Transition[C, M]) IsSubState() bool { return t.subState }
func (t *Transition[C, M]) IsCatch() bool    { return t.event == EventCatch }

// passes evaluates the condition chain. An empty chain always passes.
func (t *Transition[C, M]) passes(ctx C, msg M) bool {
	for _, cond := range t.conditions {
		if !cond(ctx, msg) {
			return false
		}
	}
	return true
}

type State[C, M any] struct {
	id          StateID
	entry       Entry[C]
	exit        Exit[C]
	transitions []Transition[C, M]
	complex     bool
	initial     StateID
}

func (s *State[C, M]) ID() StateID { return s.id }

func (s *State[C, M]) IsComplex() bool { return s.complex }

// InitialSubState is StateSame for simple states and for complex states that
// are entered without descending.
func (s *State[C, M]) InitialSubState() StateID { return s.initial }

// Transitions returns the state's transitions in declaration order,
// including its catch transition if any.
func (s *State[C, M]) Transitions() []*Transition[C, M] {
	out := make([]*Transition[C, M], len(s.transitions))
	for i := range s.transitions {
		out[i] = &s.transitions[i]
	}
	return out
}

func (s *State[C, M]) catch() *Transition[C, M] {
	for i := range s.transitions {
		if s.transitions[i].event == EventCatch {
			return &s.transitions[i]
		}
	}
	return nil
}

// Graph is an immutable set of states shared by every entity that runs on
// it. It is safe for concurrent use once built.
type Graph[C, M any] struct {
	states   []*State[C, M]
	index    map[StateID]int
	any      *State[C, M]
	logger   *slog.Logger
	released bool
}

// State looks up a real state by id. The ANY-state is not returned here.
func (g *Graph[C, M]) State(id StateID) (*State[C, M], bool) {
	if g == nil || g.released {
		return nil, false
	}
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.states[i], true
}

// AnyState returns the wildcard state, if one was declared.
func (g *Graph[C, M]) AnyState() (*State[C, M], bool) {
	if g == nil || g.released || g.any == nil {
		return nil, false
	}
	return g.any, true
}

// StateIDs lists the real states in declaration order.
func (g *Graph[C, M]) StateIDs() []StateID {
	if g == nil || g.released {
		return nil
	}
	ids := make([]StateID, len(g.states))
	for i, s := range g.states {
		ids[i] = s.id
	}
	return ids
}

func (g *Graph[C, M]) Len() int {
	if g == nil || g.released {
		return 0
	}
	return len(g.states)
}

// Destroy releases every state and transition owned by the graph. Any later
// Execute on it reports ResultNoTransition.
func (g *Graph[C, M]) Destroy() {
	if g == nil {
		return
	}
	g.states = nil
	g.index = nil
	g.any = nil
	g.released = true
}

// each visits every state including the ANY-state, which comes last.
func (g *Graph[C, M]) each(fn func(*State[C, M])) {
	for _, s := range g.states {
		fn(s)
	}
	if g.any != nil {
		fn(g.any)
	}
}
