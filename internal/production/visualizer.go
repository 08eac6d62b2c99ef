package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/hfsm"
)

// Namer renders ids for humans. builder.Table implements it.
type Namer interface {
	StateName(hfsm.StateID) string
	EventName(hfsm.EventID) string
}

type idNamer struct{}

func (idNamer) StateName(id hfsm.StateID) string { return id.String() }
func (idNamer) EventName(id hfsm.EventID) string { return id.String() }

const anyNode = "*"

// DefaultVisualizer renders graph topologies.
type DefaultVisualizer struct{}

// ExportDOT renders Graphviz source. Complex states become clusters holding
// their initial substate chain, active states are filled, catch edges are
// dashed and sub-state edges bold. names may be nil.
func (v *DefaultVisualizer) ExportDOT(top hfsm.Topology, names Namer, active []hfsm.StateID) string {
	if names == nil {
		names = idNamer{}
	}
	isActive := make(map[hfsm.StateID]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}
	byID := make(map[hfsm.StateID]*hfsm.StateInfo, len(top.States))
	for i := range top.States {
		byID[top.States[i].ID] = &top.States[i]
	}

	// parent maps an initial substate to the complex state that owns it.
	parent := make(map[hfsm.StateID]hfsm.StateID)
	for _, s := range top.States {
		if s.Complex && s.InitialSubState >= 0 {
			if _, taken := parent[s.InitialSubState]; !taken {
				parent[s.InitialSubState] = s.ID
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph HFSM {\n  rankdir=LR;\n  node [shape=box, fontsize=10, style=rounded];\n  edge [fontsize=9];\n")

	rendered := make(map[hfsm.StateID]bool)
	var render func(s *hfsm.StateInfo, indent string)
	render = func(s *hfsm.StateInfo, indent string) {
		if rendered[s.ID] {
			return
		}
		rendered[s.ID] = true
		style := ""
		if isActive[s.ID] {
			style = " style=filled fillcolor=lightgreen"
		}
		name := names.StateName(s.ID)
		if !s.Complex {
			fmt.Fprintf(&buf, "%s%q [label=%q%s];\n", indent, name, name, style)
			return
		}
		fmt.Fprintf(&buf, "%ssubgraph %q {\n", indent, "cluster_"+name)
		fmt.Fprintf(&buf, "%s  label=%q;\n", indent, name)
		fmt.Fprintf(&buf, "%s  %q [label=%q shape=ellipse%s];\n", indent, name, name, style)
		if sub, ok := byID[s.InitialSubState]; ok && parent[sub.ID] == s.ID {
			render(sub, indent+"  ")
		}
		fmt.Fprintf(&buf, "%s}\n", indent)
	}
	for i := range top.States {
		if _, nested := parent[top.States[i].ID]; !nested {
			render(&top.States[i], "  ")
		}
	}
	// Substates whose owner chain loops back are drawn at top level.
	for i := range top.States {
		render(&top.States[i], "  ")
	}
	if top.Any != nil {
		fmt.Fprintf(&buf, "  %q [shape=doublecircle label=%q];\n", anyNode, "any")
	}

	edges := func(from string, owner hfsm.StateID, ts []hfsm.TransitionInfo) {
		for _, t := range ts {
			label := names.EventName(t.Event)
			var styles []string
			switch {
			case t.IsCatch():
				label = "catch"
				styles = append(styles, "dashed")
			case t.SubState:
				styles = append(styles, "bold")
			}
			to := ""
			switch t.Target {
			case hfsm.StateSame:
				to = from
				styles = append(styles, "dotted")
			case hfsm.StateParent:
				p, ok := parent[owner]
				if !ok {
					continue
				}
				to = names.StateName(p)
			default:
				to = names.StateName(t.Target)
			}
			attrs := ""
			switch len(styles) {
			case 0:
			case 1:
				attrs = " style=" + styles[0]
			default:
				attrs = fmt.Sprintf(" style=%q", strings.Join(styles, ","))
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=%q%s];\n", from, to, label, attrs)
		}
	}
	for _, s := range top.States {
		edges(names.StateName(s.ID), s.ID, s.Transitions)
	}
	if top.Any != nil {
		edges(anyNode, hfsm.StateAny, top.Any.Transitions)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func (v *DefaultVisualizer) ExportJSON(top hfsm.Topology) ([]byte, error) {
	return json.MarshalIndent(top, "", "  ")
}

func (v *DefaultVisualizer) ExportYAML(top hfsm.Topology) ([]byte, error) {
	return yaml.Marshal(top)
}
