package hfsm

import (
	"fmt"
)

// ObjectState is the per-entity record of where an entity sits in a graph.
// NestedStateIDs[0] is the top-level state and NestedStateIDs[NestDepth] the
// innermost one. The field layout is stable so records can be persisted.
type ObjectState struct {
	NestDepth       int                   `json:"nestDepth" yaml:"nestDepth"`
	NestedStateIDs  [MaxNestDepth]StateID `json:"nestedStateIds" yaml:"nestedStateIds,flow"`
	PreviousStateID StateID               `json:"previousStateId" yaml:"previousStateId"`
}

// NewObjectState returns a record sitting in start with no previous state.
func NewObjectState(start StateID) ObjectState {
	var os ObjectState
	os.SetStartState(start, StateSame)
	return os
}

// SetStartState resets the record to the top-level state start. No Entry or
// Exit callbacks run.
func (os *ObjectState) SetStartState(start, previous StateID) {
	os.NestDepth = 0
	os.NestedStateIDs = [MaxNestDepth]StateID{start, StateSame, StateSame, StateSame}
	os.PreviousStateID = previous
}

// Current returns the innermost active state.
func (os ObjectState) Current() StateID {
	if !os.valid() {
		return StateSame
	}
	return os.NestedStateIDs[os.NestDepth]
}

// TopLevel returns the outermost active state.
func (os ObjectState) TopLevel() StateID {
	return os.NestedStateIDs[0]
}

func (os ObjectState) Previous() StateID {
	return os.PreviousStateID
}

// Active returns the active stack, outermost first.
func (os ObjectState) Active() []StateID {
	if !os.valid() {
		return nil
	}
	out := make([]StateID, os.NestDepth+1)
	copy(out, os.NestedStateIDs[:os.NestDepth+1])
	return out
}

// IsActive reports whether id is anywhere on the active stack.
func (os ObjectState) IsActive(id StateID) bool {
	for _, s := range os.Active() {
		if s == id {
			return true
		}
	}
	return false
}

// Validate checks that the record could have been produced by the engine.
// Records read back from storage should be validated before use.
func (os ObjectState) Validate() error {
	if !os.valid() {
		return fmt.Errorf("nest depth %d out of range [0, %d]", os.NestDepth, MaxNestDepth-1)
	}
	for i := 0; i <= os.NestDepth; i++ {
		if os.NestedStateIDs[i] < 0 {
			return fmt.Errorf("nest index %d holds reserved id %s", i, os.NestedStateIDs[i])
		}
	}
	return nil
}

func (os ObjectState) valid() bool {
	return os.NestDepth >= 0 && os.NestDepth < MaxNestDepth
}

func (os ObjectState) String() string {
	return fmt.Sprintf("%v (previous %s)", os.Active(), os.PreviousStateID)
}
