package primitives

import (
	"errors"
	"fmt"
)

// ReservedEvent may not be used as an event name.
const ReservedEvent = "CATCH"

// Validate checks the description for structural errors and returns all of
// them joined.
func (d *Description) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("machine name is required"))
	}
	if len(d.States) == 0 {
		errs = append(errs, errors.New("at least one state is required"))
	}

	names := make(map[string]bool, len(d.States))
	ids := make(map[int]string)
	for _, s := range d.States {
		switch {
		case s.Name == "":
			errs = append(errs, errors.New("state name is required"))
			continue
		case s.Name == TargetSame || s.Name == TargetParent:
			errs = append(errs, fmt.Errorf("state name %q is reserved", s.Name))
		case names[s.Name]:
			errs = append(errs, fmt.Errorf("duplicate state %q", s.Name))
		}
		names[s.Name] = true
		if s.ID != nil {
			if *s.ID < 0 {
				errs = append(errs, fmt.Errorf("state %q: id %d must be >= 0", s.Name, *s.ID))
			} else if other, ok := ids[*s.ID]; ok {
				errs = append(errs, fmt.Errorf("state %q: id %d already used by %q", s.Name, *s.ID, other))
			} else {
				ids[*s.ID] = s.Name
			}
		}
	}

	if d.Initial == "" {
		errs = append(errs, errors.New("initial state is required"))
	} else if !names[d.Initial] {
		errs = append(errs, fmt.Errorf("initial state %q not found", d.Initial))
	}

	for _, s := range d.States {
		where := fmt.Sprintf("state %q", s.Name)
		if s.Initial != "" && !names[s.Initial] {
			errs = append(errs, fmt.Errorf("%s: initial substate %q not found", where, s.Initial))
		}
		for i, t := range s.Transitions {
			errs = append(errs, t.validate(fmt.Sprintf("%s transition %d", where, i), names)...)
		}
		if s.Catch != nil && !validTarget(s.Catch.Target, names) {
			errs = append(errs, fmt.Errorf("%s catch: target %q not found", where, s.Catch.Target))
		}
	}
	for i, t := range d.Any {
		errs = append(errs, t.validate(fmt.Sprintf("any transition %d", i), names)...)
	}
	return errors.Join(errs...)
}

func (t TransitionDescription) validate(where string, names map[string]bool) []error {
	var errs []error
	switch t.Event {
	case "":
		errs = append(errs, fmt.Errorf("%s: event is required", where))
	case ReservedEvent:
		errs = append(errs, fmt.Errorf("%s: event name %q is reserved", where, t.Event))
	}
	if !validTarget(t.Target, names) {
		errs = append(errs, fmt.Errorf("%s: target %q not found", where, t.Target))
	}
	if t.Sub && t.Target == TargetParent {
		errs = append(errs, fmt.Errorf("%s: sub-state transition cannot target %s", where, TargetParent))
	}
	return errs
}

func validTarget(target string, names map[string]bool) bool {
	switch target {
	case "", TargetSame, TargetParent:
		return true
	}
	return names[target]
}
