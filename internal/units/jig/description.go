// Package jig implements the Jig unit kind: the description of a physical
// test fixture that sets the compatibility baseline for every other kind.
package jig

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitfile"
)

// Description is the parsed representation of a .jig file.
type Description struct {
	id          unit.Name
	name        string
	description string
}

// FromFile parses a [Jig] section from a unit file.
func FromFile(name unit.Name, f *unitfile.File) (*Description, error) {
	if !f.HasSection("Jig") {
		return nil, unit.ParseError("unit file for %s is missing the [Jig] section", name)
	}

	d := &Description{id: name}
	for _, dir := range f.Lookup("Jig") {
		switch dir.Key {
		case "Name":
			d.name = dir.Value
		case "Description":
			d.description = dir.Value
		}
	}
	return d, nil
}

func (d *Description) ID() unit.Name   { return d.id }
func (d *Description) Name() string    { return d.name }
func (d *Description) Summary() string { return d.description }

// SupportsJig reports whether this jig description IS the named jig: a jig
// is its own sole point of compatibility, unlike the listener/consumer
// kinds which carry an explicit Jigs= list.
func (d *Description) SupportsJig(jigName unit.Name) bool {
	return d.id == jigName
}
