package loggerunit

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

// Instance is the live form of a loaded Logger. Running a Logger's actual
// recording process is part of the scenario-runner subsystem, out of scope
// here (spec.md's Non-goals: "the implementations of non-Interface unit
// kinds beyond what their descriptions expose"); Select/Activate only track
// which Loggers are currently eligible to run.
type Instance struct {
	desc *Description
}

func (d *Description) NewInstance(m *unitmanager.Manager) (unitmanager.Instance, error) {
	return &Instance{desc: d}, nil
}

func (i *Instance) ID() unit.Name       { return i.desc.ID() }
func (i *Instance) Select() error       { return nil }
func (i *Instance) Deselect() error     { return nil }
func (i *Instance) Activate(m *unitmanager.Manager) error { return nil }
func (i *Instance) Deactivate() error   { return nil }
