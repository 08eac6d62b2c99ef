package testutil

import (
	"context"
	"time"

	"github.com/comalice/hfsm"
	"github.com/comalice/hfsm/internal/core"
)

// Driver runs events against one entity so a scenario can be replayed on the
// bare engine and on a core.Machine alike.
type Driver interface {
	Dispatch(event hfsm.EventID, msg any) hfsm.Result
	State() hfsm.ObjectState
}

// GraphDriver calls Graph.Execute directly.
type GraphDriver struct {
	Graph *hfsm.Graph[*Recorder, any]
	Rec   *Recorder
	OS    hfsm.ObjectState
}

func NewGraphDriver(g *hfsm.Graph[*Recorder, any], start hfsm.StateID) *GraphDriver {
	return &GraphDriver{Graph: g, Rec: NewRecorder(), OS: hfsm.NewObjectState(start)}
}

func (d *GraphDriver) Dispatch(event hfsm.EventID, msg any) hfsm.Result {
	return d.Graph.Execute(&d.OS, event, d.Rec, msg)
}

func (d *GraphDriver) State() hfsm.ObjectState { return d.OS }

// MachineDriver sends through a core.Machine.
type MachineDriver struct {
	M       *core.Machine[*Recorder, any]
	Timeout time.Duration
}

func NewMachineDriver(m *core.Machine[*Recorder, any]) *MachineDriver {
	return &MachineDriver{M: m, Timeout: time.Second}
}

func (d *MachineDriver) Dispatch(event hfsm.EventID, msg any) hfsm.Result {
	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()
	res, err := d.M.Dispatch(ctx, event, msg)
	if err != nil {
		return hfsm.ResultInternalFailure
	}
	return res
}

func (d *MachineDriver) State() hfsm.ObjectState { return d.M.State() }
