package core

import "errors"

var (
	ErrNotFound       = errors.New("snapshot not found")
	ErrNotStarted     = errors.New("machine not started")
	ErrStopped        = errors.New("machine stopped")
	ErrPaused         = errors.New("machine paused")
	ErrQueueFull      = errors.New("event queue full")
	ErrStartFailed    = errors.New("entering start state failed")
	ErrInvalidMessage = errors.New("message has the wrong type")
	ErrUnknownEntity  = errors.New("unknown entity")
	ErrEntityExists   = errors.New("entity already exists")
)
