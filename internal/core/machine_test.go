package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/core"
	"github.com/comalice/hfsm/internal/extensibility"
	"github.com/comalice/hfsm/internal/production"
	"github.com/comalice/hfsm/testutil"
)

const (
	stIdle hfsm.StateID = iota
	stBusy
	stHeld
)

const (
	evGo hfsm.EventID = iota + 1
	evHold
	evPush
	evBlock
)

type machine = core.Machine[*testutil.Recorder, any]

// newGraph builds IDLE <-> BUSY with a HELD substate of BUSY. evPush nests
// BUSY under IDLE without limit so it eventually overflows. gate, when not
// nil, blocks the evBlock action until closed and entered is signalled first.
func newGraph(t *testing.T, entered chan<- struct{}, gate <-chan struct{}) *hfsm.Graph[*testutil.Recorder, any] {
	t.Helper()
	b := hfsm.NewBuilder[*testutil.Recorder, any]()
	idle, err := b.AddState(stIdle, testutil.Entry("IDLE"), testutil.Exit("IDLE"))
	require.NoError(t, err)
	busy, err := b.AddState(stBusy, testutil.Entry("BUSY"), testutil.Exit("BUSY"))
	require.NoError(t, err)
	held, err := b.AddState(stHeld, testutil.Entry("HELD"), testutil.Exit("HELD"))
	require.NoError(t, err)

	require.NoError(t, idle.AddTransition(evGo, nil, stBusy, testutil.Action("start", true)))
	require.NoError(t, idle.AddSubTransition(evPush, nil, stBusy))
	require.NoError(t, idle.AddTransition(evBlock, nil, hfsm.StateSame, func(*testutil.Recorder, any) bool {
		if gate != nil {
			entered <- struct{}{}
			<-gate
		}
		return true
	}))
	require.NoError(t, busy.AddTransition(evGo, nil, stIdle))
	require.NoError(t, busy.AddSubTransition(evHold, nil, stHeld))
	require.NoError(t, held.AddTransition(evGo, nil, hfsm.StateParent))

	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func startMachine(t *testing.T, g *hfsm.Graph[*testutil.Recorder, any], opts ...core.Option) (*machine, *testutil.Recorder) {
	t.Helper()
	rec := testutil.NewRecorder()
	m := core.NewMachine(g, rec, stIdle, opts...)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Stop() })
	return m, rec
}

func inBusy(m *machine) func() bool {
	return func() bool { return m.State().Current() == stBusy }
}

func TestMachineStartEntersStartState(t *testing.T) {
	t.Parallel()
	p := production.NewMemoryPersister()
	m, rec := startMachine(t, newGraph(t, nil, nil), core.WithPersister(p))

	assert.NotEmpty(t, m.ID())
	assert.Same(t, rec, m.Context())
	assert.Equal(t, []string{"entry:IDLE"}, rec.Calls())
	assert.Equal(t, []hfsm.StateID{stIdle}, m.State().Active())

	snap, err := p.Load(context.Background(), m.ID())
	require.NoError(t, err)
	assert.Equal(t, stIdle, snap.State.Current())

	require.NoError(t, m.Start(context.Background()), "second start is a no-op")
	assert.Len(t, rec.Calls(), 1)
}

func TestMachineDispatchPersistsAndPublishes(t *testing.T) {
	t.Parallel()
	p := production.NewMemoryPersister()
	records := make(chan core.TransitionRecord, 8)
	m, rec := startMachine(t, newGraph(t, nil, nil),
		core.WithEntityID("line-1"),
		core.WithPersister(p),
		core.WithPublisher(production.NewChannelPublisher(records)))

	res, err := m.Dispatch(context.Background(), evGo, nil)
	require.NoError(t, err)
	require.Equal(t, hfsm.ResultNewState, res)
	assert.Equal(t, []string{"entry:IDLE", "action:start", "exit:IDLE", "entry:BUSY"}, rec.Calls())

	snap, err := p.Load(context.Background(), "line-1")
	require.NoError(t, err)
	assert.Equal(t, stBusy, snap.State.Current())
	assert.Equal(t, stIdle, snap.State.Previous())

	r := <-records
	assert.Equal(t, "line-1", r.EntityID)
	assert.Equal(t, evGo, r.Event)
	assert.Equal(t, hfsm.ResultNewState, r.Result)
	assert.Equal(t, stIdle, r.From)
	assert.Equal(t, stBusy, r.To)
	assert.Equal(t, []hfsm.StateID{stBusy}, r.Stack)

	// Unmatched events are neither saved nor published.
	res, err = m.Dispatch(context.Background(), evBlock, nil)
	require.NoError(t, err)
	assert.Equal(t, hfsm.ResultNoTransition, res)
	assert.Empty(t, records)
}

func TestMachineSendIsAsynchronous(t *testing.T) {
	t.Parallel()
	m, _ := startMachine(t, newGraph(t, nil, nil))

	require.NoError(t, m.Send(evGo, nil))
	require.Eventually(t, inBusy(m), time.Second, 5*time.Millisecond)
}

func TestMachineForwardsEventSource(t *testing.T) {
	t.Parallel()
	src := extensibility.NewChannelEventSource(make(chan core.Envelope, 1))
	m, _ := startMachine(t, newGraph(t, nil, nil), core.WithEventSource(src))

	require.True(t, src.Emit(evGo, nil))
	require.Eventually(t, inBusy(m), time.Second, 5*time.Millisecond)
}

func TestMachineTimeoutDrivesTransition(t *testing.T) {
	t.Parallel()
	to := extensibility.NewTimeout(evGo, nil)
	defer to.Stop()
	m, _ := startMachine(t, newGraph(t, nil, nil), core.WithEventSource(to))

	to.Reset(5 * time.Millisecond)
	require.Eventually(t, inBusy(m), time.Second, 5*time.Millisecond)
}

func TestMachineRestoresWithoutCallbacks(t *testing.T) {
	t.Parallel()
	p := production.NewMemoryPersister()
	g := newGraph(t, nil, nil)
	first, _ := startMachine(t, g, core.WithPersister(p))
	_, err := first.Dispatch(context.Background(), evGo, nil)
	require.NoError(t, err)
	_, err = first.Dispatch(context.Background(), evHold, nil)
	require.NoError(t, err)
	require.NoError(t, first.Stop())

	second, rec := startMachine(t, g, core.WithPersister(p), core.WithEntityID(first.ID()))
	assert.Empty(t, rec.Calls())
	assert.Equal(t, []hfsm.StateID{stBusy, stHeld}, second.State().Active())

	res, err := second.Dispatch(context.Background(), evGo, nil)
	require.NoError(t, err)
	require.Equal(t, hfsm.ResultNewState, res)
	assert.Equal(t, []string{"exit:HELD", "exit:BUSY", "entry:IDLE"}, rec.Calls())
}

type brokenPersister struct{}

var errDisk = errors.New("disk on fire")

func (brokenPersister) Save(context.Context, core.Snapshot) error { return errDisk }
func (brokenPersister) Load(context.Context, string) (core.Snapshot, error) {
	return core.Snapshot{}, errDisk
}
func (brokenPersister) Delete(context.Context, string) error { return errDisk }

func TestMachineStartFailsOnLoadError(t *testing.T) {
	t.Parallel()
	m := core.NewMachine(newGraph(t, nil, nil), testutil.NewRecorder(), stIdle, core.WithPersister(brokenPersister{}))
	err := m.Start(context.Background())
	require.ErrorIs(t, err, errDisk)
	assert.ErrorIs(t, m.Send(evGo, nil), core.ErrNotStarted)
}

func TestMachineResetsAfterInternalFailure(t *testing.T) {
	t.Parallel()
	records := make(chan core.TransitionRecord, 8)
	m, _ := startMachine(t, newGraph(t, nil, nil), core.WithPublisher(production.NewChannelPublisher(records)))

	for i := 0; i < hfsm.MaxNestDepth-1; i++ {
		res, err := m.Dispatch(context.Background(), evPush, nil)
		require.NoError(t, err)
		require.Equal(t, hfsm.ResultNewState, res)
	}
	res, err := m.Dispatch(context.Background(), evPush, nil)
	require.NoError(t, err)
	require.Equal(t, hfsm.ResultInternalFailure, res)

	st := m.State()
	assert.Equal(t, []hfsm.StateID{stIdle}, st.Active())
	assert.Equal(t, stBusy, st.Previous())

	var last core.TransitionRecord
	for len(records) > 0 {
		last = <-records
	}
	assert.Equal(t, hfsm.ResultInternalFailure, last.Result)
	assert.Equal(t, stIdle, last.To)
}

func TestMachinePauseRejectsEvents(t *testing.T) {
	t.Parallel()
	m, _ := startMachine(t, newGraph(t, nil, nil))

	m.Pause()
	assert.True(t, m.Paused())
	assert.ErrorIs(t, m.Send(evGo, nil), core.ErrPaused)
	_, err := m.Dispatch(context.Background(), evGo, nil)
	assert.ErrorIs(t, err, core.ErrPaused)

	m.Resume()
	res, err := m.Dispatch(context.Background(), evGo, nil)
	require.NoError(t, err)
	assert.Equal(t, hfsm.ResultNewState, res)
}

func TestMachineLifecycleErrors(t *testing.T) {
	t.Parallel()
	m := core.NewMachine(newGraph(t, nil, nil), testutil.NewRecorder(), stIdle)
	assert.ErrorIs(t, m.Send(evGo, nil), core.ErrNotStarted)
	_, err := m.Dispatch(context.Background(), evGo, nil)
	assert.ErrorIs(t, err, core.ErrNotStarted)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.ErrorIs(t, m.Send(evGo, nil), core.ErrStopped)
	assert.ErrorIs(t, m.Start(context.Background()), core.ErrStopped)
}

func TestMachineConcurrentStartStop(t *testing.T) {
	t.Parallel()
	g := newGraph(t, nil, nil)
	for range 100 {
		m := core.NewMachine(g, testutil.NewRecorder(), stIdle)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := m.Start(context.Background())
			if err != nil {
				assert.ErrorIs(t, err, core.ErrStopped)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Stop())
		}()
		wg.Wait()

		// Whichever ran first, the machine ends stopped with no loop left.
		require.NoError(t, m.Stop())
		assert.ErrorIs(t, m.Send(evGo, nil), core.ErrStopped)
		assert.ErrorIs(t, m.Start(context.Background()), core.ErrStopped)
	}
}

func TestMachineQueueFull(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	gate := make(chan struct{})
	m, _ := startMachine(t, newGraph(t, entered, gate), core.WithQueueSize(1))

	require.NoError(t, m.Send(evBlock, nil))
	<-entered
	require.NoError(t, m.Send(evGo, nil))
	assert.ErrorIs(t, m.Send(evGo, nil), core.ErrQueueFull)

	close(gate)
	require.Eventually(t, inBusy(m), time.Second, 5*time.Millisecond)
}

func TestMachineReset(t *testing.T) {
	t.Parallel()
	p := production.NewMemoryPersister()
	m, rec := startMachine(t, newGraph(t, nil, nil), core.WithPersister(p))
	_, err := m.Dispatch(context.Background(), evGo, nil)
	require.NoError(t, err)
	rec.Reset()

	require.NoError(t, m.Reset(context.Background()))
	assert.Empty(t, rec.Calls())
	assert.Equal(t, stIdle, m.State().Current())
	assert.Equal(t, stBusy, m.State().Previous())

	snap, err := p.Load(context.Background(), m.ID())
	require.NoError(t, err)
	assert.Equal(t, stIdle, snap.State.Current())
}

func TestMachineMatchesBareEngine(t *testing.T) {
	t.Parallel()
	g := newGraph(t, nil, nil)
	m, _ := startMachine(t, g)
	drivers := map[string]testutil.Driver{
		"graph":   testutil.NewGraphDriver(g, stIdle),
		"machine": testutil.NewMachineDriver(m),
	}
	script := []struct {
		event hfsm.EventID
		want  hfsm.Result
	}{
		{evGo, hfsm.ResultNewState},
		{evHold, hfsm.ResultNewState},
		{evHold, hfsm.ResultNewState},
		{evBlock, hfsm.ResultNoTransition},
		{evGo, hfsm.ResultNewState},
		{evGo, hfsm.ResultNewState},
	}

	for name, d := range drivers {
		for i, step := range script {
			assert.Equal(t, step.want, d.Dispatch(step.event, nil), "%s step %d", name, i)
		}
	}
	assert.Equal(t, drivers["graph"].State().Active(), drivers["machine"].State().Active())
}
