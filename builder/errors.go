package builder

import (
	"errors"
	"fmt"
)

var ErrUnknownCallback = errors.New("unknown callback")

// CallbackError reports a callback name with no registry entry.
type CallbackError struct {
	Kind  string
	Name  string
	State string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("state %q: %s %q is not registered", e.State, e.Kind, e.Name)
}

func (e *CallbackError) Unwrap() error { return ErrUnknownCallback }
