// Package testutil provides callback recorders and drivers shared by the
// package tests.
package testutil

import (
	"fmt"
	"sync"

	"github.com/comalice/hfsm"
)

// Recorder is an application context that logs every callback invoked on it.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func Entry(name string) hfsm.Entry[*Recorder] {
	return func(r *Recorder) { r.Record("entry:%s", name) }
}

func Exit(name string) hfsm.Exit[*Recorder] {
	return func(r *Recorder) { r.Record("exit:%s", name) }
}

// Action records "action:name" and returns ok.
func Action(name string, ok bool) hfsm.Action[*Recorder, any] {
	return func(r *Recorder, _ any) bool {
		r.Record("action:%s", name)
		return ok
	}
}

// Condition records "cond:name" and returns ok.
func Condition(name string, ok bool) hfsm.Condition[*Recorder, any] {
	return func(r *Recorder, _ any) bool {
		r.Record("cond:%s", name)
		return ok
	}
}
