package hfsm

// Topology is a callback-free snapshot of a Graph's shape, used by
// exporters and tooling that do not know the graph's type parameters.
type Topology struct {
	States []StateInfo `json:"states" yaml:"states"`
	Any    *StateInfo  `json:"any,omitempty" yaml:"any,omitempty"`
}

type StateInfo struct {
	ID              StateID          `json:"id" yaml:"id"`
	Complex         bool             `json:"complex,omitempty" yaml:"complex,omitempty"`
	InitialSubState StateID          `json:"initialSubState" yaml:"initialSubState"`
	HasEntry        bool             `json:"hasEntry,omitempty" yaml:"hasEntry,omitempty"`
	HasExit         bool             `json:"hasExit,omitempty" yaml:"hasExit,omitempty"`
	Transitions     []TransitionInfo `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

type TransitionInfo struct {
	Event      EventID `json:"event" yaml:"event"`
	Target     StateID `json:"target" yaml:"target"`
	SubState   bool    `json:"subState,omitempty" yaml:"subState,omitempty"`
	Conditions int     `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    int     `json:"actions,omitempty" yaml:"actions,omitempty"`
}

func (t TransitionInfo) IsCatch() bool { return t.Event == EventCatch }

// Topology describes the graph. The result shares nothing with the graph.
func (g *Graph[C, M]) Topology() Topology {
	var top Topology
	if g == nil || g.released {
		return top
	}
	top.States = make([]StateInfo, 0, len(g.states))
	for _, s := range g.states {
		top.States = append(top.States, s.info())
	}
	if g.any != nil {
		info := g.any.info()
		top.Any = &info
	}
	return top
}

func (s *State[C, M]) info() StateInfo {
	info := StateInfo{
		ID:              s.id,
		Complex:         s.complex,
		InitialSubState: s.initial,
		HasEntry:        s.entry != nil,
		HasExit:         s.exit != nil,
	}
	for _, t := range s.transitions {
		info.Transitions = append(info.Transitions, TransitionInfo{
			Event:      t.event,
			Target:     t.target,
			SubState:   t.subState,
			Conditions: len(t.conditions),
			Actions:    len(t.actions),
		})
	}
	return info
}
