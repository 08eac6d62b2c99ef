package builder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/comalice/hfsm"
)

// Table is a compiled description: the graph plus the name/id mapping used
// to build it.
type Table[C, M any] struct {
	Name    string
	Graph   *hfsm.Graph[C, M]
	Initial hfsm.StateID

	nameToID   map[string]hfsm.StateID
	idToName   map[hfsm.StateID]string
	events     map[string]hfsm.EventID
	eventNames map[hfsm.EventID]string
}

func (t *Table[C, M]) StateID(name string) (hfsm.StateID, bool) {
	id, ok := t.nameToID[name]
	return id, ok
}

func (t *Table[C, M]) EventID(name string) (hfsm.EventID, bool) {
	id, ok := t.events[name]
	return id, ok
}

// StateName returns the declared name for id, or the id itself for reserved
// and unknown ids.
func (t *Table[C, M]) StateName(id hfsm.StateID) string {
	if name, ok := t.idToName[id]; ok {
		return name
	}
	return id.String()
}

func (t *Table[C, M]) EventName(id hfsm.EventID) string {
	if name, ok := t.eventNames[id]; ok {
		return name
	}
	return id.String()
}

// Events lists the event names in id order.
func (t *Table[C, M]) Events() []string {
	out := make([]string, 0, len(t.events))
	for name := range t.events {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return t.events[out[i]] < t.events[out[j]] })
	return out
}

// Compile validates d, resolves every callback name against reg and builds
// the graph. States without an explicit id get the lowest free id in
// declaration order; events are numbered in order of first appearance,
// except TimeoutEvent.
func Compile[C, M any](d *Description, reg *Registry[C, M], opts ...hfsm.BuilderOption) (*Table[C, M], error) {
	if d == nil {
		return nil, errors.New("nil description")
	}
	if reg == nil {
		reg = NewRegistry[C, M]()
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid description %q: %w", d.Name, err)
	}

	t := &Table[C, M]{
		Name:       d.Name,
		nameToID:   make(map[string]hfsm.StateID, len(d.States)),
		idToName:   make(map[hfsm.StateID]string, len(d.States)),
		events:     make(map[string]hfsm.EventID),
		eventNames: make(map[hfsm.EventID]string),
	}
	t.assignStateIDs(d)
	t.assignEventIDs(d)
	t.Initial = t.nameToID[d.Initial]

	c := compiler[C, M]{table: t, reg: reg, b: hfsm.NewBuilder[C, M](opts...)}
	for i := range d.States {
		c.state(&d.States[i])
	}
	if len(d.Any) > 0 {
		anyState := c.b.AnyState()
		for _, td := range d.Any {
			c.transition(anyState, "ANY", td)
		}
	}
	if err := errors.Join(c.errs...); err != nil {
		return nil, err
	}

	g, err := c.b.Build()
	if err != nil {
		return nil, err
	}
	t.Graph = g
	return t, nil
}

func (t *Table[C, M]) assignStateIDs(d *Description) {
	used := make(map[hfsm.StateID]bool)
	for _, s := range d.States {
		if s.ID != nil {
			used[hfsm.StateID(*s.ID)] = true
		}
	}
	next := hfsm.StateID(0)
	for _, s := range d.States {
		var id hfsm.StateID
		if s.ID != nil {
			id = hfsm.StateID(*s.ID)
		} else {
			for used[next] {
				next++
			}
			id = next
			used[id] = true
		}
		t.nameToID[s.Name] = id
		t.idToName[id] = s.Name
	}
}

func (t *Table[C, M]) assignEventIDs(d *Description) {
	next := hfsm.EventID(0)
	for _, name := range d.Events() {
		id := next
		if name == TimeoutEvent {
			id = hfsm.EventTimeout
		} else {
			next++
		}
		t.events[name] = id
		t.eventNames[id] = name
	}
}

func (t *Table[C, M]) target(name string) hfsm.StateID {
	switch name {
	case "", TargetSame:
		return hfsm.StateSame
	case TargetParent:
		return hfsm.StateParent
	}
	return t.nameToID[name]
}

type compiler[C, M any] struct {
	table *Table[C, M]
	reg   *Registry[C, M]
	b     *hfsm.Builder[C, M]
	errs  []error
}

func (c *compiler[C, M]) state(sd *StateDescription) {
	id := c.table.nameToID[sd.Name]
	entry := c.entry(sd.Name, sd.Entry)
	exit := c.exit(sd.Name, sd.Exit)

	var (
		sb  *hfsm.StateBuilder[C, M]
		err error
	)
	if sd.IsComplex() {
		initial := hfsm.StateSame
		if sd.Initial != "" {
			initial = c.table.nameToID[sd.Initial]
		}
		sb, err = c.b.AddComplexState(id, initial, entry, exit)
	} else {
		sb, err = c.b.AddState(id, entry, exit)
	}
	if err != nil {
		c.errs = append(c.errs, err)
		return
	}
	for _, td := range sd.Transitions {
		c.transition(sb, sd.Name, td)
	}
	if sd.Catch != nil {
		actions := c.actions(sd.Name, sd.Catch.Actions)
		if err := sb.AddCatchTransition(c.table.target(sd.Catch.Target), actions...); err != nil {
			c.errs = append(c.errs, err)
		}
	}
}

func (c *compiler[C, M]) transition(sb *hfsm.StateBuilder[C, M], state string, td TransitionDescription) {
	event := c.table.events[td.Event]
	target := c.table.target(td.Target)
	conds := c.conditions(state, td.Conditions)
	actions := c.actions(state, td.Actions)

	var err error
	if td.Sub {
		err = sb.AddSubTransition(event, allOf(conds), target, actions...)
	} else {
		err = sb.AddTransitionMulti(event, conds, target, actions)
	}
	if err != nil {
		c.errs = append(c.errs, err)
	}
}

func (c *compiler[C, M]) entry(state, name string) hfsm.Entry[C] {
	if name == "" {
		return nil
	}
	fn, ok := c.reg.entries[name]
	if !ok {
		c.errs = append(c.errs, &CallbackError{Kind: "entry", Name: name, State: state})
	}
	return fn
}

func (c *compiler[C, M]) exit(state, name string) hfsm.Exit[C] {
	if name == "" {
		return nil
	}
	fn, ok := c.reg.exits[name]
	if !ok {
		c.errs = append(c.errs, &CallbackError{Kind: "exit", Name: name, State: state})
	}
	return fn
}

func (c *compiler[C, M]) conditions(state string, names []string) []hfsm.Condition[C, M] {
	var out []hfsm.Condition[C, M]
	for _, name := range names {
		fn, ok := c.reg.conditions[name]
		if !ok {
			c.errs = append(c.errs, &CallbackError{Kind: "condition", Name: name, State: state})
			continue
		}
		out = append(out, fn)
	}
	return out
}

func (c *compiler[C, M]) actions(state string, names []string) []hfsm.Action[C, M] {
	var out []hfsm.Action[C, M]
	for _, name := range names {
		fn, ok := c.reg.actions[name]
		if !ok {
			c.errs = append(c.errs, &CallbackError{Kind: "action", Name: name, State: state})
			continue
		}
		out = append(out, fn)
	}
	return out
}

// allOf folds conditions into one, for sub-state transitions which take a
// single condition.
func allOf[C, M any](conds []hfsm.Condition[C, M]) hfsm.Condition[C, M] {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	}
	return func(ctx C, msg M) bool {
		for _, cond := range conds {
			if !cond(ctx, msg) {
				return false
			}
		}
		return true
	}
}
