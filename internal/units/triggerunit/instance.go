package triggerunit

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

// Instance is the live form of a loaded Trigger. Watching for the
// condition a Trigger describes and firing a scenario in response belongs
// to the scenario-runner subsystem, out of scope here; Select/Activate only
// track eligibility.
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
