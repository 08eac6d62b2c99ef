package primitives

// Target keywords. An empty target means TargetSame.
const (
	TargetSame   = "SAME"
	TargetParent = "PARENT"
)

// Description is a complete machine description.
type Description struct {
	Name    string                  `json:"name" yaml:"name"`
	Initial string                  `json:"initial" yaml:"initial"`
	States  []StateDescription      `json:"states" yaml:"states"`
	Any     []TransitionDescription `json:"any,omitempty" yaml:"any,omitempty"`
}

// StateDescription describes one state. A state with Initial set, or with
// Complex true, is complex.
type StateDescription struct {
	Name        string                  `json:"name" yaml:"name"`
	ID          *int                    `json:"id,omitempty" yaml:"id,omitempty"`
	Complex     bool                    `json:"complex,omitempty" yaml:"complex,omitempty"`
	Initial     string                  `json:"initial,omitempty" yaml:"initial,omitempty"`
	Entry       string                  `json:"entry,omitempty" yaml:"entry,omitempty"`
	Exit        string                  `json:"exit,omitempty" yaml:"exit,omitempty"`
	Transitions []TransitionDescription `json:"on,omitempty" yaml:"on,omitempty"`
	Catch       *CatchDescription       `json:"catch,omitempty" yaml:"catch,omitempty"`
}

// TransitionDescription describes one transition. Conditions are ANDed in
// order; Sub marks a sub-state transition.
type TransitionDescription struct {
	Event      string   `json:"event" yaml:"event"`
	Conditions []string `json:"if,omitempty" yaml:"if,omitempty"`
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	Actions    []string `json:"do,omitempty" yaml:"do,omitempty"`
	Sub        bool     `json:"sub,omitempty" yaml:"sub,omitempty"`
}

type CatchDescription struct {
	Target  string   `json:"target,omitempty" yaml:"target,omitempty"`
	Actions []string `json:"do,omitempty" yaml:"do,omitempty"`
}

// IsComplex reports whether the state nests substates.
func (s *StateDescription) IsComplex() bool {
	return s.Complex || s.Initial != ""
}

// NewState starts a state description.
func NewState(name string) *StateDescription {
	return &StateDescription{Name: name}
}

// WithID pins the state's numeric id.
func (s *StateDescription) WithID(id int) *StateDescription {
	s.ID = &id
	return s
}

// WithInitial makes the state complex with the given initial substate.
func (s *StateDescription) WithInitial(initial string) *StateDescription {
	s.Complex = true
	s.Initial = initial
	return s
}

func (s *StateDescription) WithEntry(name string) *StateDescription {
	s.Entry = name
	return s
}

func (s *StateDescription) WithExit(name string) *StateDescription {
	s.Exit = name
	return s
}

// On appends a transition.
func (s *StateDescription) On(t TransitionDescription) *StateDescription {
	s.Transitions = append(s.Transitions, t)
	return s
}

// OnFailure sets the catch transition.
func (s *StateDescription) OnFailure(target string, actions ...string) *StateDescription {
	s.Catch = &CatchDescription{Target: target, Actions: actions}
	return s
}

// Add appends states to the description.
func (d *Description) Add(states ...*StateDescription) *Description {
	for _, s := range states {
		d.States = append(d.States, *s)
	}
	return d
}

// Find returns the named state.
func (d *Description) Find(name string) (*StateDescription, bool) {
	for i := range d.States {
		if d.States[i].Name == name {
			return &d.States[i], true
		}
	}
	return nil, false
}

// Events lists event names in order of first appearance.
func (d *Description) Events() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(ts []TransitionDescription) {
		for _, t := range ts {
			if !seen[t.Event] {
				seen[t.Event] = true
				out = append(out, t.Event)
			}
		}
	}
	for _, s := range d.States {
		add(s.Transitions)
	}
	add(d.Any)
	return out
}
