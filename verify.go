package hfsm

import "fmt"

type Violation int

const (
	ViolationNone Violation = iota
	ViolationNoEntry
	ViolationNoExit
)

func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationNoEntry:
		return "no entry"
	case ViolationNoExit:
		return "no exit"
	}
	return fmt.Sprintf("Violation(%d)", int(v))
}

type VerifyFunc func(id StateID, v Violation)

// Issue is one verifier report.
type Issue struct {
	State StateID
	Kind  Violation
}

func (i Issue) String() string {
	return fmt.Sprintf("state %s: %s", i.State, i.Kind)
}

// Verify reports states that no transition leads into and transition targets
// that have no way out, and returns true when there are none. Only direct
// transitions are considered, so a state reached solely as an initial
// substate is reported as having no entry.
func (g *Graph[C, M]) Verify(fn VerifyFunc) bool {
	if g == nil || g.released {
		return true
	}
	if fn == nil {
		fn = func(StateID, Violation) {}
	}
	ok := true

	for _, s := range g.states {
		if !g.targeted(s.id) {
			fn(s.id, ViolationNoEntry)
			ok = false
		}
	}

	g.each(func(s *State[C, M]) {
		for _, t := range s.transitions {
			if t.target < 0 {
				continue
			}
			if !g.exitable(t.target) {
				fn(t.target, ViolationNoExit)
				ok = false
			}
		}
	})
	return ok
}

// Violations collects what Verify reports.
func (g *Graph[C, M]) Violations() []Issue {
	var out []Issue
	g.Verify(func(id StateID, v Violation) {
		out = append(out, Issue{State: id, Kind: v})
	})
	return out
}

func (g *Graph[C, M]) targeted(id StateID) bool {
	found := false
	g.each(func(s *State[C, M]) {
		for _, t := range s.transitions {
			if t.target == id {
				found = true
				return
			}
		}
	})
	return found
}

// exitable reports whether the state id has a transition leading somewhere
// other than itself. An undeclared id has none.
func (g *Graph[C, M]) exitable(id StateID) bool {
	s, ok := g.State(id)
	if !ok {
		return false
	}
	for _, t := range s.transitions {
		if t.target != StateSame && t.target != id {
			return true
		}
	}
	return false
}
