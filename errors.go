package hfsm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateID = errors.New("state id must be >= 0")
	ErrDuplicateState = errors.New("duplicate state id")
	ErrReservedEvent  = errors.New("event id is reserved for catch transitions")
	ErrInvalidTarget  = errors.New("invalid transition target")
	ErrDuplicateCatch = errors.New("state already has a catch transition")
	ErrCatchOnAny     = errors.New("the any-state cannot have a catch transition")
	ErrDetachedState  = errors.New("state was not added to the graph")
	ErrGraphBuilt     = errors.New("graph is already built")
	ErrUnknownTarget  = errors.New("target names an undeclared state")
)

// CreationError records one rejected builder call.
type CreationError struct {
	Op    string
	State StateID
	Event EventID
	Err   error
}

func (e *CreationError) Error() string {
	switch e.Op {
	case "AddState", "AddComplexState":
		return fmt.Sprintf("%s(%s): %v", e.Op, e.State, e.Err)
	}
	return fmt.Sprintf("%s(state=%s, event=%s): %v", e.Op, e.State, e.Event, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// IsCreationError reports whether err carries at least one builder rejection.
func IsCreationError(err error) bool {
	var ce *CreationError
	return errors.As(err, &ce)
}
