// Package testunit implements the Test unit kind: an atomic, pure-data test
// consumed by Scenarios.
package testunit

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitfile"
)

// Description is the parsed representation of a .test file.
type Description struct {
	id   unit.Name
	name string
	jigs unit.JigList
}

// FromFile parses a [Test] section from a unit file.
func FromFile(name unit.Name, f *unitfile.File) (*Description, error) {
	if !f.HasSection("Test") {
		return nil, unit.ParseError("unit file for %s is missing the [Test] section", name)
	}

	d := &Description{id: name}
	for _, dir := range f.Lookup("Test") {
		switch dir.Key {
		case "Name":
			d.name = dir.Value
		case "Jigs":
			jigs, err := unit.ParseJigList(dir.Value)
			if err != nil {
				return nil, unit.ParseError("Test %s: %s", name, err)
			}
			d.jigs = jigs
		}
	}
	return d, nil
}

func (d *Description) ID() unit.Name   { return d.id }
func (d *Description) Name() string    { return d.name }
func (d *Description) SupportsJig(jigName unit.Name) bool { return d.jigs.Supports(jigName) }
