// Package interfaceunit implements the Interface unit kind and the
// Interface Runtime (§4.8, §L8): the subprocess supervisor that exposes the
// harness to clients over a text line protocol. Directly adapted from
// original_source/src/units/interface.rs, with the systemd_parser/runny
// external crates replaced by this repository's unitfile package and
// os/exec + jesseduffield/kill respectively.
package interfaceunit

import (
	"path/filepath"
	"strings"

	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitfile"
)

// Format selects the wire encoding an Interface's child process speaks.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Description is the parsed representation of a .interface file.
type Description struct {
	id               unit.Name
	name             string
	description      string
	jigs             unit.JigList
	execStart        string
	format           Format
	workingDirectory string // as written in the unit file; may be relative or empty
	unitDirectory    string // directory containing the unit file itself
}

// FromFile parses the mandatory [Interface] section of a unit file.
// ExecStart is required; Format, if present, must be "text" or "json".
func FromFile(name unit.Name, path string, f *unitfile.File) (*Description, error) {
	if !f.HasSection("Interface") {
		return nil, unit.ParseError("unit file for %s is missing the [Interface] section", name)
	}

	d := &Description{
		id:            name,
		format:        FormatText,
		unitDirectory: filepath.Dir(path),
	}

	haveExecStart := false
	for _, dir := range f.Lookup("Interface") {
		switch dir.Key {
		case "Name":
			d.name = dir.Value
		case "Description":
			d.description = dir.Value
		case "Jigs":
			jigs, err := unit.ParseJigList(dir.Value)
			if err != nil {
				return nil, unit.ParseError("Interface %s: %s", name, err)
			}
			d.jigs = jigs
		case "WorkingDirectory":
			d.workingDirectory = dir.Value
		case "ExecStart":
			if dir.Value == "" {
				return nil, unit.ParseError("Interface %s: ExecStart directive has no value", name)
			}
			d.execStart = dir.Value
			haveExecStart = true
		case "Format":
			switch strings.ToLower(dir.Value) {
			case "", "text":
				d.format = FormatText
			case "json":
				d.format = FormatJSON
			default:
				return nil, unit.ParseError(
					"Interface %s: invalid Format %q, must be one of: text, json", name, dir.Value)
			}
		}
	}

	if !haveExecStart {
		return nil, unit.ParseError("Interface %s: missing required ExecStart directive", name)
	}

	return d, nil
}

func (d *Description) ID() unit.Name { return d.id }
func (d *Description) Name() string  { return d.name }
func (d *Description) Summary() string { return d.description }
func (d *Description) ExecStart() string { return d.execStart }
func (d *Description) Format() Format    { return d.format }

func (d *Description) SupportsJig(jigName unit.Name) bool { return d.jigs.Supports(jigName) }

// UnitDirectory returns the directory containing the unit file itself, the
// base that a relative WorkingDirectory= override resolves against.
func (d *Description) UnitDirectory() string { return d.unitDirectory }

// WorkingDirectoryOverride returns the raw WorkingDirectory= value, or ""
// if the directive was absent.
func (d *Description) WorkingDirectoryOverride() string { return d.workingDirectory }

// IsCompatible implements §4.8's compatibility rule: compatible if the jig
// list is empty, or at least one listed jig is currently loaded.
func (d *Description) IsCompatible(jigIsLoaded func(unit.Name) bool) error {
	if len(d.jigs) == 0 {
		return nil
	}
	for _, jigName := range d.jigs {
		if jigIsLoaded(jigName) {
			return nil
		}
	}
	return unit.CompatibilityError("interface %s is not compatible with any currently loaded jig", d.id)
}
