// Package benchmarks holds graph generators and benchmarks for the engine,
// the machine runtime and the description compiler.
package benchmarks

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/builder"
	"github.com/comalice/hfsm/internal/core"
)

// EvTick drives every generated graph.
const EvTick hfsm.EventID = 1

type (
	Ctx   = struct{}
	Graph = hfsm.Graph[Ctx, any]
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// GenFlat builds n top-level states cycling 0 -> 1 -> ... -> 0 on EvTick.
func GenFlat(n int) *Graph {
	n = max(n, 1)
	b := hfsm.NewBuilder[Ctx, any]()
	for i := range n {
		s := must(b.AddState(hfsm.StateID(i), func(Ctx) {}, func(Ctx) {}))
		check(s.AddTransition(EvTick, nil, hfsm.StateID((i+1)%n)))
	}
	return must(b.Build())
}

// GenDeep nests depth complex states, capped at what the stack can hold, with
// two leaves at the bottom flipping on EvTick. Every tick scans the whole
// stack before the leaf matches. Leaves have ids depth and depth+1.
func GenDeep(depth int) *Graph {
	depth = min(max(depth, 1), hfsm.MaxNestDepth-1)
	b := hfsm.NewBuilder[Ctx, any]()
	for i := range depth {
		_ = must(b.AddComplexState(hfsm.StateID(i), hfsm.StateID(i+1), nil, nil))
	}
	leaf1, leaf2 := hfsm.StateID(depth), hfsm.StateID(depth+1)
	l1 := must(b.AddState(leaf1, func(Ctx) {}, func(Ctx) {}))
	l2 := must(b.AddState(leaf2, func(Ctx) {}, func(Ctx) {}))
	check(l1.AddTransition(EvTick, nil, leaf2))
	check(l2.AddTransition(EvTick, nil, leaf1))
	return must(b.Build())
}

// GenWide gives state 0 n alternatives for EvTick. Only the last one passes
// its condition, so every tick evaluates all of them.
func GenWide(n int) *Graph {
	n = max(n, 1)
	b := hfsm.NewBuilder[Ctx, any]()
	main := must(b.AddState(0, nil, nil))
	target := must(b.AddState(1, nil, nil))
	for i := range n {
		last := i == n-1
		check(main.AddTransition(EvTick, func(Ctx, any) bool { return last }, 1))
	}
	check(target.AddTransition(EvTick, nil, 0))
	return must(b.Build())
}

// GenDescription describes the same cycle as GenFlat by name.
func GenDescription(n int) *builder.Description {
	n = max(n, 1)
	d := &builder.Description{Name: fmt.Sprintf("flat_%d", n), Initial: "s0"}
	for i := range n {
		d.Add(builder.NewState(fmt.Sprintf("s%d", i)).
			On(builder.TransitionDescription{Event: "tick", Target: fmt.Sprintf("s%d", (i+1)%n)}))
	}
	return d
}

// GenSnapshotYAML encodes the snapshot of an entity sitting in the deepest
// leaf of GenDeep.
func GenSnapshotYAML() []byte {
	g := GenDeep(hfsm.MaxNestDepth)
	os := hfsm.NewObjectState(0)
	g.Start(&os, 0, Ctx{})
	snap := core.Snapshot{EntityID: "bench", State: os, Timestamp: time.Now()}
	return must(yaml.Marshal(snap))
}
