package hfsm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/testutil"
)

type (
	rec = testutil.Recorder
	msg = any
)

const (
	stA hfsm.StateID = iota
	stB
	stC
	stD
	stX
)

const (
	evGo hfsm.EventID = iota + 1
	evUp
	evPush
	evOther
)

func newBuilder() *hfsm.Builder[*rec, msg] {
	return hfsm.NewBuilder[*rec, msg]()
}

func addState(t *testing.T, b *hfsm.Builder[*rec, msg], id hfsm.StateID, name string) *hfsm.StateBuilder[*rec, msg] {
	t.Helper()
	s, err := b.AddState(id, testutil.Entry(name), testutil.Exit(name))
	require.NoError(t, err)
	return s
}

func addComplex(t *testing.T, b *hfsm.Builder[*rec, msg], id, initial hfsm.StateID, name string) *hfsm.StateBuilder[*rec, msg] {
	t.Helper()
	s, err := b.AddComplexState(id, initial, testutil.Entry(name), testutil.Exit(name))
	require.NoError(t, err)
	return s
}

func build(t *testing.T, b *hfsm.Builder[*rec, msg]) *hfsm.Graph[*rec, msg] {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestExecuteSkipsAlternativeWithFailingCondition(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	addState(t, b, stC, "C")
	require.NoError(t, a.AddTransition(evGo, testutil.Condition("first", false), stB, testutil.Action("toB", true)))
	require.NoError(t, a.AddTransition(evGo, testutil.Condition("second", true), stC, testutil.Action("toC", true)))
	d := testutil.NewGraphDriver(build(t, b), stA)

	res := d.Dispatch(evGo, nil)

	require.Equal(t, hfsm.ResultNewState, res)
	assert.Equal(t, stC, d.OS.Current())
	assert.Equal(t, stA, d.OS.Previous())
	assert.Equal(t, []string{"cond:first", "cond:second", "action:toC", "exit:A", "entry:C"}, d.Rec.Calls())
}

func TestExecuteConditionChainShortCircuits(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	conds := []hfsm.Condition[*rec, msg]{
		testutil.Condition("one", true),
		testutil.Condition("two", false),
		testutil.Condition("three", true),
	}
	require.NoError(t, a.AddTransitionMulti(evGo, conds, stB, nil))
	d := testutil.NewGraphDriver(build(t, b), stA)

	assert.Equal(t, hfsm.ResultNoTransition, d.Dispatch(evGo, nil))
	assert.Equal(t, []string{"cond:one", "cond:two"}, d.Rec.Calls())
	assert.Equal(t, stA, d.OS.Current())
}

func TestExecuteActionFailureWithoutCatch(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	require.NoError(t, a.AddTransition(evGo, nil, stB,
		testutil.Action("one", true),
		testutil.Action("two", false),
		testutil.Action("three", true),
	))
	d := testutil.NewGraphDriver(build(t, b), stA)
	before := d.State()

	assert.Equal(t, hfsm.ResultActionFailure, d.Dispatch(evGo, nil))
	assert.Equal(t, []string{"action:one", "action:two"}, d.Rec.Calls())
	assert.Equal(t, before, d.State())
}

func TestExecuteActionFailureTakesCatch(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	addState(t, b, stC, "C")
	require.NoError(t, a.AddTransition(evGo, nil, stB,
		testutil.Action("one", false),
		testutil.Action("two", true),
	))
	require.NoError(t, a.AddCatchTransition(stC,
		testutil.Action("catch1", false),
		testutil.Action("catch2", true),
	))
	d := testutil.NewGraphDriver(build(t, b), stA)

	assert.Equal(t, hfsm.ResultNewState, d.Dispatch(evGo, nil))
	assert.Equal(t, stC, d.OS.Current())
	assert.Equal(t, stA, d.OS.Previous())
	assert.Equal(t, []string{"action:one", "action:catch1", "action:catch2", "exit:A", "entry:C"}, d.Rec.Calls())
}

func TestExecuteCatchToSameIsNoChange(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	require.NoError(t, a.AddTransition(evGo, nil, stB, testutil.Action("fail", false)))
	require.NoError(t, a.AddCatchTransition(hfsm.StateSame, testutil.Action("recover", true)))
	d := testutil.NewGraphDriver(build(t, b), stA)

	assert.Equal(t, hfsm.ResultNoChange, d.Dispatch(evGo, nil))
	assert.Equal(t, stA, d.OS.Current())
	assert.Equal(t, []string{"action:fail", "action:recover"}, d.Rec.Calls())
}

func TestExecuteSameTargetIsNoChange(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	require.NoError(t, a.AddTransition(evGo, nil, hfsm.StateSame, testutil.Action("tick", true)))
	d := testutil.NewGraphDriver(build(t, b), stA)
	before := d.State()

	assert.Equal(t, hfsm.ResultNoChange, d.Dispatch(evGo, nil))
	assert.Equal(t, before, d.State())
	assert.Equal(t, []string{"action:tick"}, d.Rec.Calls())
}

func TestExecuteRejectsCatchEvent(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	require.NoError(t, a.AddCatchTransition(stB))
	d := testutil.NewGraphDriver(build(t, b), stA)

	assert.Equal(t, hfsm.ResultNoTransition, d.Dispatch(hfsm.EventCatch, nil))
	assert.Equal(t, stA, d.OS.Current())
}

func TestStartDescendsThroughInitialSubstates(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	addComplex(t, b, stA, stB, "A")
	addComplex(t, b, stB, stC, "B")
	addState(t, b, stC, "C")
	g := build(t, b)

	r := testutil.NewRecorder()
	var os hfsm.ObjectState
	require.Equal(t, hfsm.ResultNewState, g.Start(&os, stA, r))

	assert.Equal(t, []hfsm.StateID{stA, stB, stC}, os.Active())
	assert.Equal(t, []string{"entry:A", "entry:B", "entry:C"}, r.Calls())
	assert.Equal(t, hfsm.StateSame, os.Previous())
}

func TestExecuteEntersComplexChain(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	x := addState(t, b, stX, "X")
	addComplex(t, b, stA, stB, "A")
	addComplex(t, b, stB, stC, "B")
	addState(t, b, stC, "C")
	require.NoError(t, x.AddTransition(evGo, nil, stA))
	d := testutil.NewGraphDriver(build(t, b), stX)

	require.Equal(t, hfsm.ResultNewState, d.Dispatch(evGo, nil))
	assert.Equal(t, []hfsm.StateID{stA, stB, stC}, d.OS.Active())
	assert.Equal(t, stC, d.OS.Current())
	assert.Equal(t, stA, d.OS.TopLevel())
	assert.Equal(t, []string{"exit:X", "entry:A", "entry:B", "entry:C"}, d.Rec.Calls())
}

func TestExecuteParentExitsInnermostOnly(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	addComplex(t, b, stA, stB, "A")
	sb := addState(t, b, stB, "B")
	require.NoError(t, sb.AddTransition(evUp, nil, hfsm.StateParent))
	g := build(t, b)

	r := testutil.NewRecorder()
	var os hfsm.ObjectState
	require.Equal(t, hfsm.ResultNewState, g.Start(&os, stA, r))
	require.Equal(t, []hfsm.StateID{stA, stB}, os.Active())
	r.Reset()

	require.Equal(t, hfsm.ResultNewState, g.Execute(&os, evUp, r, nil))
	assert.Equal(t, []hfsm.StateID{stA}, os.Active())
	assert.Equal(t, stB, os.Previous())
	assert.Equal(t, []string{"exit:B"}, r.Calls())
}

func TestExecuteOuterStateWinsOverInner(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addComplex(t, b, stA, stB, "A")
	sb := addState(t, b, stB, "B")
	addState(t, b, stC, "C")
	addState(t, b, stD, "D")
	require.NoError(t, a.AddTransition(evGo, nil, stC, testutil.Action("outer", true)))
	require.NoError(t, sb.AddTransition(evGo, nil, stD, testutil.Action("inner", true)))
	g := build(t, b)

	r := testutil.NewRecorder()
	var os hfsm.ObjectState
	g.Start(&os, stA, r)
	r.Reset()

	require.Equal(t, hfsm.ResultNewState, g.Execute(&os, evGo, r, nil))
	assert.Equal(t, []hfsm.StateID{stC}, os.Active())
	assert.Equal(t, stB, os.Previous())
	assert.Equal(t, []string{"action:outer", "exit:B", "exit:A", "entry:C"}, r.Calls())
}

func TestExecuteInnerMatchKeepsOuterStates(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	addComplex(t, b, stA, stB, "A")
	sb := addState(t, b, stB, "B")
	addState(t, b, stC, "C")
	require.NoError(t, sb.AddTransition(evGo, nil, stC))
	g := build(t, b)

	r := testutil.NewRecorder()
	var os hfsm.ObjectState
	g.Start(&os, stA, r)
	r.Reset()

	require.Equal(t, hfsm.ResultNewState, g.Execute(&os, evGo, r, nil))
	assert.Equal(t, []hfsm.StateID{stA, stC}, os.Active())
	assert.Equal(t, []string{"exit:B", "entry:C"}, r.Calls())
}

func TestExecuteSubTransitionPushesWithoutExit(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	sb := addState(t, b, stB, "B")
	require.NoError(t, a.AddSubTransition(evPush, nil, stB))
	require.NoError(t, sb.AddTransition(evUp, nil, hfsm.StateParent))
	d := testutil.NewGraphDriver(build(t, b), stA)

	require.Equal(t, hfsm.ResultNewState, d.Dispatch(evPush, nil))
	assert.Equal(t, []hfsm.StateID{stA, stB}, d.OS.Active())
	assert.Equal(t, []string{"entry:B"}, d.Rec.Calls())

	d.Rec.Reset()
	require.Equal(t, hfsm.ResultNewState, d.Dispatch(evUp, nil))
	assert.Equal(t, []hfsm.StateID{stA}, d.OS.Active())
	assert.Equal(t, []string{"exit:B"}, d.Rec.Calls())
}

func TestExecuteParentAtTopLevelStaysPut(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	require.NoError(t, a.AddTransition(evUp, nil, hfsm.StateParent))
	d := testutil.NewGraphDriver(build(t, b), stA)

	require.Equal(t, hfsm.ResultNewState, d.Dispatch(evUp, nil))
	assert.Equal(t, []hfsm.StateID{stA}, d.OS.Active())
	assert.Equal(t, stA, d.OS.Previous())
	assert.Equal(t, []string{"exit:A"}, d.Rec.Calls())
}

func TestExecuteSubTransitionOverflow(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	for id := hfsm.StateID(0); id < hfsm.MaxNestDepth+1; id++ {
		s := addState(t, b, id, "S")
		require.NoError(t, s.AddSubTransition(evPush, nil, id+1))
	}
	d := testutil.NewGraphDriver(build(t, b), 0)

	for i := 0; i < hfsm.MaxNestDepth-1; i++ {
		require.Equal(t, hfsm.ResultNewState, d.Dispatch(evPush, nil))
	}
	assert.Equal(t, hfsm.MaxNestDepth-1, d.OS.NestDepth)
	assert.Equal(t, hfsm.ResultInternalFailure, d.Dispatch(evPush, nil))
}

func TestStartOverflowsOnTooDeepChain(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	for id := hfsm.StateID(0); id < hfsm.MaxNestDepth; id++ {
		addComplex(t, b, id, id+1, "S")
	}
	addState(t, b, hfsm.MaxNestDepth, "leaf")
	g := build(t, b)

	var os hfsm.ObjectState
	assert.Equal(t, hfsm.ResultInternalFailure, g.Start(&os, 0, testutil.NewRecorder()))
}

func TestExecuteExitsFromInnermostToMatchDepth(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addComplex(t, b, stA, stB, "A")
	addComplex(t, b, stB, stC, "B")
	addState(t, b, stC, "C")
	addState(t, b, stX, "X")
	require.NoError(t, a.AddTransition(evGo, nil, stX))
	g := build(t, b)

	r := testutil.NewRecorder()
	var os hfsm.ObjectState
	g.Start(&os, stA, r)
	r.Reset()

	require.Equal(t, hfsm.ResultNewState, g.Execute(&os, evGo, r, nil))
	assert.Equal(t, []string{"exit:C", "exit:B", "exit:A", "entry:X"}, r.Calls())
	assert.Equal(t, []hfsm.StateID{stX}, os.Active())
	assert.Equal(t, stC, os.Previous())
}

func TestExecuteAnyStateUnwindsWholeStack(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	addComplex(t, b, stA, stB, "A")
	addState(t, b, stB, "B")
	addState(t, b, stX, "X")
	require.NoError(t, b.AnyState().AddTransition(evOther, nil, stX))
	g := build(t, b)

	r := testutil.NewRecorder()
	var os hfsm.ObjectState
	g.Start(&os, stA, r)
	r.Reset()

	require.Equal(t, hfsm.ResultNewState, g.Execute(&os, evOther, r, nil))
	assert.Equal(t, []string{"exit:B", "exit:A", "entry:X"}, r.Calls())
	assert.Equal(t, []hfsm.StateID{stX}, os.Active())
}

func TestExecuteAnyStateActionFailure(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	addState(t, b, stA, "A")
	addState(t, b, stX, "X")
	require.NoError(t, b.AnyState().AddTransition(evOther, nil, stX, testutil.Action("fail", false)))
	d := testutil.NewGraphDriver(build(t, b), stA)

	assert.Equal(t, hfsm.ResultActionFailure, d.Dispatch(evOther, nil))
	assert.Equal(t, stA, d.OS.Current())
}

func TestExecuteUnknownTargetIsWrittenWithoutEntry(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	require.NoError(t, a.AddTransition(evGo, nil, 99))
	d := testutil.NewGraphDriver(build(t, b), stA)

	require.Equal(t, hfsm.ResultNewState, d.Dispatch(evGo, nil))
	assert.Equal(t, hfsm.StateID(99), d.OS.Current())
	assert.Equal(t, []string{"exit:A"}, d.Rec.Calls())
	assert.Equal(t, hfsm.ResultNoTransition, d.Dispatch(evGo, nil))
}

func TestExecuteCorruptObjectState(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	addState(t, b, stA, "A")
	g := build(t, b)

	os := hfsm.ObjectState{NestDepth: hfsm.MaxNestDepth}
	assert.Equal(t, hfsm.ResultInternalFailure, g.Execute(&os, evGo, testutil.NewRecorder(), nil))
	assert.Equal(t, hfsm.ResultInternalFailure, g.Execute(nil, evGo, testutil.NewRecorder(), nil))
}

func TestExecuteAfterDestroy(t *testing.T) {
	t.Parallel()
	b := newBuilder()
	a := addState(t, b, stA, "A")
	addState(t, b, stB, "B")
	require.NoError(t, a.AddTransition(evGo, nil, stB))
	g := build(t, b)
	g.Destroy()

	os := hfsm.NewObjectState(stA)
	assert.Equal(t, hfsm.ResultNoTransition, g.Execute(&os, evGo, testutil.NewRecorder(), nil))
	assert.Zero(t, g.Len())
}

// Phone scenario

const (
	phIdle hfsm.StateID = iota
	phDialing
	phOriginating
	phError
)

const (
	phOffhook hfsm.EventID = iota
	phTimeout
	phErrorTone
)

type call struct{ hasDigits bool }

func phoneGraph(t *testing.T) *hfsm.Graph[*call, any] {
	t.Helper()
	hasDigits := func(c *call, _ any) bool { return c.hasDigits }
	noDigits := func(c *call, _ any) bool { return !c.hasDigits }

	b := hfsm.NewBuilder[*call, any](hfsm.WithStrictTargets())
	idle, _ := b.AddState(phIdle, nil, nil)
	dialing, _ := b.AddState(phDialing, nil, nil)
	b.AddState(phOriginating, nil, nil)
	b.AddState(phError, nil, nil)

	idle.AddTransition(phOffhook, nil, phDialing)
	dialing.AddTransition(phTimeout, noDigits, phError)
	dialing.AddTransition(phTimeout, hasDigits, phOriginating)
	b.AnyState().AddTransition(phErrorTone, nil, phError)

	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestPhoneDialTimeout(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name      string
		hasDigits bool
		want      hfsm.StateID
	}{
		{"no digits", false, phError},
		{"digits", true, phOriginating},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := phoneGraph(t)
			c := &call{hasDigits: tc.hasDigits}
			os := hfsm.NewObjectState(phIdle)

			require.Equal(t, hfsm.ResultNewState, g.Execute(&os, phOffhook, c, nil))
			require.Equal(t, phDialing, os.Current())
			require.Equal(t, hfsm.ResultNewState, g.Execute(&os, phTimeout, c, nil))
			assert.Equal(t, tc.want, os.Current())
			assert.Equal(t, phDialing, os.Previous())
		})
	}
}

func TestPhoneErrorToneFromAnyState(t *testing.T) {
	t.Parallel()
	g := phoneGraph(t)
	for _, from := range []hfsm.StateID{phDialing, phOriginating} {
		os := hfsm.NewObjectState(from)
		require.Equal(t, hfsm.ResultNewState, g.Execute(&os, phErrorTone, &call{}, nil))
		assert.Equal(t, phError, os.Current())
		assert.Equal(t, from, os.Previous())
	}
}
