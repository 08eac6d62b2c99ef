package hfsm

import (
	"errors"
	"log/slog"
)

type BuilderOption func(*builderConfig)

type builderConfig struct {
	logger *slog.Logger
	strict bool
}

// WithLogger sets the logger the built graph reports engine decisions to.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(c *builderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictTargets makes Build reject transitions and initial substates
// that name undeclared states. Without it such targets are accepted and the
// engine records them in the stack without running any Entry.
func WithStrictTargets() BuilderOption {
	return func(c *builderConfig) { c.strict = true }
}

// Builder assembles a Graph. Every rejected call returns its error and also
// records it; Build reports all of them together.
type Builder[C, M any] struct {
	cfg    builderConfig
	states []*State[C, M]
	index  map[StateID]int
	any    *StateBuilder[C, M]
	errs   []error
	built  bool
}

// StateBuilder adds transitions to one state. A handle returned from a
// failed AddState is detached: every call on it fails.
type StateBuilder[C, M any] struct {
	b     *Builder[C, M]
	state *State[C, M]
}

func NewBuilder[C, M any](opts ...BuilderOption) *Builder[C, M] {
	cfg := builderConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder[C, M]{
		cfg:   cfg,
		index: make(map[StateID]int),
	}
}

// AddState declares a simple state. entry and exit may be nil.
func (b *Builder[C, M]) AddState(id StateID, entry Entry[C], exit Exit[C]) (*StateBuilder[C, M], error) {
	return b.addState("AddState", id, false, StateSame, entry, exit)
}

// AddComplexState declares a state that owns nested substates. When
// initial is not StateSame, entering the state descends into initial.
func (b *Builder[C, M]) AddComplexState(id, initial StateID, entry Entry[C], exit Exit[C]) (*StateBuilder[C, M], error) {
	if initial < 0 && initial != StateSame {
		return b.detached(&CreationError{Op: "AddComplexState", State: id, Err: ErrInvalidTarget})
	}
	return b.addState("AddComplexState", id, true, initial, entry, exit)
}

func (b *Builder[C, M]) addState(op string, id StateID, complex bool, initial StateID, entry Entry[C], exit Exit[C]) (*StateBuilder[C, M], error) {
	switch {
	case b.built:
		return b.detached(&CreationError{Op: op, State: id, Err: ErrGraphBuilt})
	case id < 0:
		return b.detached(&CreationError{Op: op, State: id, Err: ErrInvalidStateID})
	}
	if _, exists := b.index[id]; exists {
		return b.detached(&CreationError{Op: op, State: id, Err: ErrDuplicateState})
	}
	s := &State[C, M]{
		id:      id,
		entry:   entry,
		exit:    exit,
		complex: complex,
		initial: initial,
	}
	b.index[id] = len(b.states)
	b.states = append(b.states, s)
	return &StateBuilder[C, M]{b: b, state: s}, nil
}

func (b *Builder[C, M]) detached(err error) (*StateBuilder[C, M], error) {
	b.errs = append(b.errs, err)
	return &StateBuilder[C, M]{b: b}, err
}

// AnyState returns the wildcard state, creating it on first use. Its
// transitions are tried only when no active state matches an event.
func (b *Builder[C, M]) AnyState() *StateBuilder[C, M] {
	if b.any == nil {
		b.any = &StateBuilder[C, M]{
			b:     b,
			state: &State[C, M]{id: StateAny, initial: StateSame},
		}
	}
	return b.any
}

// HasCreationError reports whether any builder call has been rejected.
func (b *Builder[C, M]) HasCreationError() bool { return len(b.errs) > 0 }

// Err joins every recorded rejection, or returns nil.
func (b *Builder[C, M]) Err() error { return errors.Join(b.errs...) }

// Build freezes the builder and returns the graph. Any recorded rejection
// fails the build and no graph is returned.
func (b *Builder[C, M]) Build() (*Graph[C, M], error) {
	if b.built {
		return nil, ErrGraphBuilt
	}
	if b.cfg.strict {
		b.checkTargets()
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	b.built = true
	g := &Graph[C, M]{
		states: b.states,
		index:  b.index,
		logger: b.cfg.logger,
	}
	if b.any != nil {
		g.any = b.any.state
	}
	return g, nil
}

func (b *Builder[C, M]) checkTargets() {
	check := func(s *State[C, M]) {
		if s.complex && s.initial >= 0 {
			if _, ok := b.index[s.initial]; !ok {
				b.errs = append(b.errs, &CreationError{Op: "AddComplexState", State: s.id, Err: ErrUnknownTarget})
			}
		}
		for _, t := range s.transitions {
			if t.target < 0 {
				continue
			}
			if _, ok := b.index[t.target]; !ok {
				b.errs = append(b.errs, &CreationError{Op: "AddTransition", State: s.id, Event: t.event, Err: ErrUnknownTarget})
			}
		}
	}
	for _, s := range b.states {
		check(s)
	}
	if b.any != nil {
		check(b.any.state)
	}
}

//
// Transitions
//

// ID returns the state's id, or StateSame for a detached handle.
func (sb *StateBuilder[C, M]) ID() StateID {
	if sb.state == nil {
		return StateSame
	}
	return sb.state.id
}

// AddTransition adds a transition guarded by at most one condition.
func (sb *StateBuilder[C, M]) AddTransition(event EventID, cond Condition[C, M], target StateID, actions ...Action[C, M]) error {
	return sb.add("AddTransition", event, conditions(cond), target, false, actions)
}

// AddTransitionMulti adds a transition guarded by every condition in conds.
func (sb *StateBuilder[C, M]) AddTransitionMulti(event EventID, conds []Condition[C, M], target StateID, actions []Action[C, M]) error {
	return sb.add("AddTransitionMulti", event, conditions(conds...), target, false, actions)
}

// AddSubTransition adds a transition that pushes target as a substate of the
// current innermost state, without exiting anything.
func (sb *StateBuilder[C, M]) AddSubTransition(event EventID, cond Condition[C, M], target StateID, actions ...Action[C, M]) error {
	if target == StateParent {
		return sb.reject("AddSubTransition", event, ErrInvalidTarget)
	}
	return sb.add("AddSubTransition", event, conditions(cond), target, true, actions)
}

// AddCatchTransition adds the transition taken when an action of another
// transition on this state fails.
func (sb *StateBuilder[C, M]) AddCatchTransition(target StateID, actions ...Action[C, M]) error {
	const op = "AddCatchTransition"
	if sb.state != nil && sb.state.id == StateAny {
		return sb.reject(op, EventCatch, ErrCatchOnAny)
	}
	if sb.state != nil && sb.state.catch() != nil {
		return sb.reject(op, EventCatch, ErrDuplicateCatch)
	}
	return sb.add(op, EventCatch, nil, target, false, actions)
}

func (sb *StateBuilder[C, M]) add(op string, event EventID, conds []Condition[C, M], target StateID, sub bool, actions []Action[C, M]) error {
	switch {
	case sb.state == nil:
		return sb.reject(op, event, ErrDetachedState)
	case sb.b.built:
		return sb.reject(op, event, ErrGraphBuilt)
	case event == EventCatch && op != "AddCatchTransition":
		return sb.reject(op, event, ErrReservedEvent)
	case target == StateAny:
		return sb.reject(op, event, ErrInvalidTarget)
	}
	var acts []Action[C, M]
	for _, a := range actions {
		if a != nil {
			acts = append(acts, a)
		}
	}
	sb.state.transitions = append(sb.state.transitions, Transition[C, M]{
		event:      event,
		conditions: conds,
		actions:    acts,
		target:     target,
		subState:   sub,
	})
	return nil
}

func (sb *StateBuilder[C, M]) reject(op string, event EventID, err error) error {
	ce := &CreationError{Op: op, State: sb.ID(), Event: event, Err: err}
	sb.b.errs = append(sb.b.errs, ce)
	return ce
}

func conditions[C, M any](conds ...Condition[C, M]) []Condition[C, M] {
	var out []Condition[C, M]
	for _, c := range conds {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
