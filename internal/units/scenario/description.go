// Package scenario implements the Scenario unit kind: an ordered composition
// of Tests.
package scenario

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitfile"
)

// Description is the parsed representation of a .scenario file.
type Description struct {
	id    unit.Name
	name  string
	jigs  unit.JigList
	tests []unit.Name
}

// FromFile parses a [Scenario] section from a unit file.
func FromFile(name unit.Name, f *unitfile.File) (*Description, error) {
	if !f.HasSection("Scenario") {
		return nil, unit.ParseError("unit file for %s is missing the [Scenario] section", name)
	}

	d := &Description{id: name}
	for _, dir := range f.Lookup("Scenario") {
		switch dir.Key {
		case "Name":
			d.name = dir.Value
		case "Jigs":
			jigs, err := unit.ParseJigList(dir.Value)
			if err != nil {
				return nil, unit.ParseError("Scenario %s: %s", name, err)
			}
			d.jigs = jigs
		case "Tests":
			tests, err := unit.FromList(dir.Value, unit.KindTest)
			if err != nil {
				return nil, unit.ParseError("Scenario %s: invalid Tests list: %s", name, err)
			}
			d.tests = tests
		}
	}
	return d, nil
}

func (d *Description) ID() unit.Name   { return d.id }
func (d *Description) Name() string    { return d.name }
func (d *Description) SupportsJig(jigName unit.Name) bool { return d.jigs.Supports(jigName) }

// Tests returns the ordered list of test ids this scenario composes.
func (d *Description) Tests() []unit.Name { return d.tests }

// UsesTest reports whether this scenario includes testName, used by phase 2
// (test-driven scenario invalidation) of the Rescan Engine.
func (d *Description) UsesTest(testName unit.Name) bool {
	for _, t := range d.tests {
		if t == testName {
			return true
		}
	}
	return false
}
