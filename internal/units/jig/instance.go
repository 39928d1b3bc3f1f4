package jig

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

// Instance is the live form of a loaded Jig. A jig has no process of its
// own: selecting and activating it is bookkeeping only, marking the
// hardware profile that governs which Interfaces/Loggers/Triggers are
// compatible for the remainder of the rescan. Scenario execution against a
// jig is out of scope here.
type Instance struct {
	desc *Description
}

// NewInstance satisfies unitmanager.LoadableDescription.
func (d *Description) NewInstance(m *unitmanager.Manager) (unitmanager.Instance, error) {
	return &Instance{desc: d}, nil
}

func (i *Instance) ID() unit.Name       { return i.desc.ID() }
func (i *Instance) Select() error       { return nil }
func (i *Instance) Deselect() error     { return nil }
func (i *Instance) Activate(m *unitmanager.Manager) error { return nil }
func (i *Instance) Deactivate() error   { return nil }
